// Package github implements tracker.Client against the GitHub API.
//
// Listing, identity and mutations go through GraphQL (githubv4); sub-issue
// children, the bot's current assignments and label listing use REST (go-github).
// Both clients share one oauth2 HTTP client whose transport is paced by a token
// bucket. Reads are retried with exponential backoff; mutations never are.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gh "github.com/google/go-github/v79/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/steveyegge/assignbot/internal/tracker"
)

const (
	// PageSize is the page size for every paginated listing
	PageSize = 100

	// DefaultRequestsPerSecond paces API calls when Options leaves it unset
	DefaultRequestsPerSecond = 10
	// DefaultBurst is the token bucket size when Options leaves it unset
	DefaultBurst = 5
	// DefaultTimeout is the per-request HTTP timeout
	DefaultTimeout = 30 * time.Second
	// DefaultRetryMaxElapsed bounds read retries
	DefaultRetryMaxElapsed = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	Owner    string
	Repo     string
	Token    string
	BotLogin string

	APIURL     string // REST base URL; empty means api.github.com
	GraphQLURL string // GraphQL endpoint; empty means api.github.com/graphql

	RequestsPerSecond float64
	Burst             int
	RetryMaxElapsed   time.Duration // 0 disables retries
	Timeout           time.Duration

	// HTTPClient replaces the oauth2 client. Its transport is still rate limited.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a tracker.Client for one GitHub repository.
type Client struct {
	rest *gh.Client
	gql  *githubv4.Client

	owner    string
	repo     string
	botLogin string

	retryMaxElapsed time.Duration
	log             *slog.Logger

	repoID githubv4.ID // Resolved lazily for CreateIssue
}

// New creates a client. A token is required unless HTTPClient is set.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}
	if opts.BotLogin == "" {
		return nil, fmt.Errorf("bot login is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.Token == "" {
			return nil, fmt.Errorf("token is required")
		}
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Copy so the caller's client is left untouched.
	paced := *httpClient
	paced.Transport = &pacedTransport{
		base:    httpClient.Transport,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
	paced.Timeout = timeout

	rest := gh.NewClient(&paced)
	if opts.APIURL != "" {
		var err error
		rest, err = rest.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", opts.APIURL, err)
		}
	}

	var gql *githubv4.Client
	if opts.GraphQLURL != "" {
		gql = githubv4.NewEnterpriseClient(opts.GraphQLURL, &paced)
	} else {
		gql = githubv4.NewClient(&paced)
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		rest:            rest,
		gql:             gql,
		owner:           opts.Owner,
		repo:            opts.Repo,
		botLogin:        opts.BotLogin,
		retryMaxElapsed: opts.RetryMaxElapsed,
		log:             log.With("component", "github", "repo", opts.Owner+"/"+opts.Repo),
	}, nil
}

// pacedTransport waits on a token bucket before every request.
type pacedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

func (c *Client) repoVars() map[string]interface{} {
	return map[string]interface{}{
		"owner": githubv4.String(c.owner),
		"repo":  githubv4.String(c.repo),
	}
}

var _ tracker.Client = (*Client)(nil)
