package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gh "github.com/google/go-github/v79/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

// fakeGitHub serves the REST and GraphQL endpoints the client uses for octo/widgets.
type fakeGitHub struct {
	t *testing.T

	mu        sync.Mutex
	queries   []gqlRequest
	gqlFails  int // Remaining GraphQL requests answered with 502
	restCalls int32

	// GraphQL handler picked by the first matching query substring
	graphql map[string]func(req gqlRequest) interface{}
}

func (f *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(f.t, err)
		var req gqlRequest
		require.NoError(f.t, json.Unmarshal(body, &req))

		f.mu.Lock()
		f.queries = append(f.queries, req)
		fail := f.gqlFails > 0
		if fail {
			f.gqlFails--
		}
		f.mu.Unlock()

		if fail {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		for marker, fn := range f.graphql {
			if strings.Contains(req.Query, marker) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": fn(req)})
				return
			}
		}
		f.t.Errorf("unexpected GraphQL query: %s", req.Query)
		http.Error(w, "unexpected query", http.StatusBadRequest)
	})

	mux.HandleFunc("/api/v3/repos/octo/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.restCalls, 1)
		assert.Equal(f.t, "Copilot", r.URL.Query().Get("assignee"))
		assert.Equal(f.t, "open", r.URL.Query().Get("state"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			_, _ = fmt.Fprint(w, `[{"number": 12, "node_id": "I_12", "title": "second page", "state": "open",
				"assignees": [{"login": "Copilot"}], "labels": [{"name": "bug"}]}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=2>; rel="next"`, "http://"+r.Host, r.URL.Path))
		_, _ = fmt.Fprint(w, `[
			{"number": 10, "node_id": "I_10", "title": "assigned", "state": "open",
			 "assignees": [{"login": "Copilot"}], "labels": [{"name": "enhancement"}],
			 "created_at": "2025-01-01T00:00:00Z"},
			{"number": 11, "node_id": "PR_11", "title": "a pull request", "state": "open",
			 "pull_request": {"url": "https://example.invalid/pulls/11"}}
		]`)
	})

	mux.HandleFunc("/api/v3/repos/octo/widgets/issues/7/sub_issues", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.restCalls, 1)
		assert.Equal(f.t, "1", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"number": 8, "repository": {"name": "gadgets", "owner": {"login": "octo"}}}]`)
	})
	mux.HandleFunc("/api/v3/repos/octo/widgets/issues/9/sub_issues", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.restCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[]`)
	})

	mux.HandleFunc("/api/v3/repos/octo/widgets/labels", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.restCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[{"node_id": "LA_1", "name": "bug"}, {"node_id": "LA_2", "name": "refactor"}]`)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.restCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message": "Not Found"}`)
	})
	return mux
}

func (f *fakeGitHub) recorded() []gqlRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gqlRequest(nil), f.queries...)
}

func newTestClient(t *testing.T, f *fakeGitHub, retry time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	c, err := New(context.Background(), Options{
		Owner:             "octo",
		Repo:              "widgets",
		BotLogin:          "copilot",
		APIURL:            server.URL + "/",
		GraphQLURL:        server.URL + "/graphql",
		RequestsPerSecond: 1000,
		Burst:             100,
		RetryMaxElapsed:   retry,
		HTTPClient:        server.Client(),
	})
	require.NoError(t, err)
	return c
}

func issueJSON(number int, title string, labelNames ...string) map[string]interface{} {
	nodes := make([]map[string]interface{}, 0, len(labelNames))
	for _, name := range labelNames {
		nodes = append(nodes, map[string]interface{}{"name": name})
	}
	return map[string]interface{}{
		"id":              fmt.Sprintf("I_%d", number),
		"number":          number,
		"title":           title,
		"url":             fmt.Sprintf("https://github.com/octo/widgets/issues/%d", number),
		"body":            "",
		"state":           "OPEN",
		"createdAt":       "2025-01-01T00:00:00Z",
		"updatedAt":       "2025-01-02T00:00:00Z",
		"closedAt":        nil,
		"assignees":       map[string]interface{}{"nodes": []interface{}{}},
		"labels":          map[string]interface{}{"nodes": nodes},
		"subIssues":       map[string]interface{}{"totalCount": 0},
		"trackedInIssues": map[string]interface{}{"totalCount": 0},
		"parent":          nil,
	}
}

func issuesPage(nodes []interface{}, cursor string, next bool) interface{} {
	return map[string]interface{}{
		"repository": map[string]interface{}{
			"issues": map[string]interface{}{
				"nodes":    nodes,
				"pageInfo": map[string]interface{}{"endCursor": cursor, "hasNextPage": next},
			},
		},
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(context.Background(), Options{Repo: "widgets", BotLogin: "Copilot", Token: "x"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Owner: "octo", Repo: "widgets", Token: "x"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Owner: "octo", Repo: "widgets", BotLogin: "Copilot"})
	assert.Error(t, err, "token is required without an HTTP client")
}

func TestListIssuesPaginates(t *testing.T) {
	f := &fakeGitHub{t: t}
	f.graphql = map[string]func(gqlRequest) interface{}{
		"issues(first:": func(req gqlRequest) interface{} {
			if req.Variables["cursor"] == nil {
				first := issueJSON(1, "first", "bug")
				first["subIssues"] = map[string]interface{}{"totalCount": 2}
				first["parent"] = map[string]interface{}{"number": 40}
				return issuesPage([]interface{}{first}, "c1", true)
			}
			assert.Equal(t, "c1", req.Variables["cursor"])
			// Tracked by a task list and natively parented by the same issue.
			second := issueJSON(2, "second")
			second["trackedInIssues"] = map[string]interface{}{"totalCount": 1}
			second["parent"] = map[string]interface{}{"number": 40}
			return issuesPage([]interface{}{second}, "c2", false)
		},
	}
	c := newTestClient(t, f, 0)

	issues, err := c.ListIssues(context.Background(), tracker.IssueFilter{
		State:  types.StateOpen,
		Labels: []string{labels.LabelBug},
		Order:  tracker.OrderCreatedAsc,
	})
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "I_1", issues[0].ID)
	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, types.StateOpen, issues[0].State)
	assert.Equal(t, 2, issues[0].SubIssueCount)
	assert.Equal(t, 1, issues[0].ParentTrackingCount)
	assert.True(t, issues[0].Labels.Has(labels.LabelBug))
	assert.Equal(t, 2, issues[1].Number)
	assert.Equal(t, 1, issues[1].ParentTrackingCount, "a parent that also tracks the issue counts once")

	queries := f.recorded()
	require.Len(t, queries, 2)
	assert.Equal(t, "octo", queries[0].Variables["owner"])
	assert.Equal(t, "widgets", queries[0].Variables["repo"])
	assert.Equal(t, []interface{}{"OPEN"}, queries[0].Variables["states"])
	assert.Equal(t, map[string]interface{}{"field": "CREATED_AT", "direction": "ASC"}, queries[0].Variables["orderBy"])
}

func TestListIssuesHonorsLimit(t *testing.T) {
	f := &fakeGitHub{t: t}
	f.graphql = map[string]func(gqlRequest) interface{}{
		"issues(first:": func(req gqlRequest) interface{} {
			assert.EqualValues(t, 5, req.Variables["first"])
			nodes := []interface{}{issueJSON(1, "a"), issueJSON(2, "b"), issueJSON(3, "c"), issueJSON(4, "d"), issueJSON(5, "e")}
			return issuesPage(nodes, "c1", true)
		},
	}
	c := newTestClient(t, f, 0)

	issues, err := c.ListIssues(context.Background(), tracker.IssueFilter{
		State: types.StateClosed,
		Order: tracker.OrderUpdatedDesc,
		Limit: 5,
	})
	require.NoError(t, err)
	assert.Len(t, issues, 5)

	queries := f.recorded()
	require.Len(t, queries, 1, "limit reached on the first page")
	assert.Equal(t, []interface{}{"CLOSED"}, queries[0].Variables["states"])
	assert.Equal(t, map[string]interface{}{"field": "UPDATED_AT", "direction": "DESC"}, queries[0].Variables["orderBy"])
}

func TestListIssuesRetriesTransientFailure(t *testing.T) {
	f := &fakeGitHub{t: t, gqlFails: 1}
	f.graphql = map[string]func(gqlRequest) interface{}{
		"issues(first:": func(gqlRequest) interface{} {
			return issuesPage([]interface{}{issueJSON(1, "a")}, "", false)
		},
	}
	c := newTestClient(t, f, 10*time.Second)

	issues, err := c.ListIssues(context.Background(), tracker.IssueFilter{State: types.StateOpen})
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Len(t, f.recorded(), 2)
}

func TestListIssuesWithoutRetryFails(t *testing.T) {
	f := &fakeGitHub{t: t, gqlFails: 1}
	c := newTestClient(t, f, 0)

	_, err := c.ListIssues(context.Background(), tracker.IssueFilter{State: types.StateOpen})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing issues")
	assert.Len(t, f.recorded(), 1)
}

func TestListIssuesByAssigneeUsesREST(t *testing.T) {
	f := &fakeGitHub{t: t}
	c := newTestClient(t, f, 0)

	issues, err := c.ListIssues(context.Background(), tracker.IssueFilter{
		State:    types.StateOpen,
		Assignee: "Copilot",
	})
	require.NoError(t, err)
	require.Len(t, issues, 2, "pull request dropped, second page followed")

	assert.Equal(t, 10, issues[0].Number)
	assert.Equal(t, "I_10", issues[0].ID)
	assert.True(t, issues[0].Assignees.Contains("Copilot"))
	assert.True(t, issues[0].Labels.Has(labels.LabelEnhancement))
	assert.Equal(t, 12, issues[1].Number)
	assert.Empty(t, f.recorded(), "no GraphQL for assignee listings")
}

func TestListDirectChildren(t *testing.T) {
	f := &fakeGitHub{t: t}
	c := newTestClient(t, f, 0)
	ctx := context.Background()

	refs, err := c.ListDirectChildren(ctx, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, []types.IssueRef{{Owner: "octo", Repo: "gadgets", Number: 8}}, refs)

	refs, err = c.ListDirectChildren(ctx, 9, 1)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = c.ListDirectChildren(ctx, 404, 1)
	require.Error(t, err)
	var respErr *gh.ErrorResponse
	assert.True(t, errors.As(err, &respErr))
	assert.Contains(t, err.Error(), "#404")
}

func TestListLabels(t *testing.T) {
	f := &fakeGitHub{t: t}
	c := newTestClient(t, f, 0)

	got, err := c.ListLabels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Label{{ID: "LA_1", Name: "bug"}, {ID: "LA_2", Name: "refactor"}}, got)
}

func TestGetLabel(t *testing.T) {
	f := &fakeGitHub{t: t}
	f.graphql = map[string]func(gqlRequest) interface{}{
		"label(name:": func(req gqlRequest) interface{} {
			if req.Variables["name"] != labels.LabelRefactor {
				return map[string]interface{}{"repository": map[string]interface{}{"label": nil}}
			}
			return map[string]interface{}{"repository": map[string]interface{}{
				"label": map[string]interface{}{"id": "LA_2", "name": "refactor"},
			}}
		},
	}
	c := newTestClient(t, f, 0)

	label, err := c.GetLabel(context.Background(), labels.LabelRefactor)
	require.NoError(t, err)
	assert.Equal(t, &types.Label{ID: "LA_2", Name: "refactor"}, label)

	_, err = c.GetLabel(context.Background(), "missing")
	assert.ErrorIs(t, err, tracker.ErrLabelNotFound)
}

func TestBotIdentity(t *testing.T) {
	actors := func(req gqlRequest) interface{} {
		if req.Variables["cursor"] == nil {
			return map[string]interface{}{"repository": map[string]interface{}{
				"suggestedActors": map[string]interface{}{
					"nodes":    []interface{}{map[string]interface{}{"login": "octocat", "id": "U_1"}},
					"pageInfo": map[string]interface{}{"endCursor": "a1", "hasNextPage": true},
				},
			}}
		}
		return map[string]interface{}{"repository": map[string]interface{}{
			"suggestedActors": map[string]interface{}{
				"nodes":    []interface{}{map[string]interface{}{"login": "Copilot", "id": "BOT_kgDO"}},
				"pageInfo": map[string]interface{}{"endCursor": "a2", "hasNextPage": false},
			},
		}}
	}

	t.Run("found on second page", func(t *testing.T) {
		f := &fakeGitHub{t: t}
		f.graphql = map[string]func(gqlRequest) interface{}{"suggestedActors(": actors}
		c := newTestClient(t, f, 0)

		bot, err := c.BotIdentity(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &types.Identity{ID: "BOT_kgDO", Login: "Copilot"}, bot)
	})

	t.Run("not assignable", func(t *testing.T) {
		f := &fakeGitHub{t: t}
		f.graphql = map[string]func(gqlRequest) interface{}{"suggestedActors(": actors}
		c := newTestClient(t, f, 0)
		c.botLogin = "dependabot"

		_, err := c.BotIdentity(context.Background())
		assert.ErrorIs(t, err, tracker.ErrBotNotFound)
	})
}

func TestMutations(t *testing.T) {
	f := &fakeGitHub{t: t}
	f.graphql = map[string]func(gqlRequest) interface{}{
		"addAssigneesToAssignable(": func(gqlRequest) interface{} {
			return map[string]interface{}{"addAssigneesToAssignable": map[string]interface{}{"clientMutationId": nil}}
		},
		"addLabelsToLabelable(": func(gqlRequest) interface{} {
			return map[string]interface{}{"addLabelsToLabelable": map[string]interface{}{"clientMutationId": nil}}
		},
		"createIssue(": func(gqlRequest) interface{} {
			return map[string]interface{}{"createIssue": map[string]interface{}{"issue": issueJSON(77, "Refactor: codebase maintenance")}}
		},
		"repository(owner: $owner, name: $repo){id}": func(gqlRequest) interface{} {
			return map[string]interface{}{"repository": map[string]interface{}{"id": "R_1"}}
		},
	}
	c := newTestClient(t, f, 0)
	ctx := context.Background()

	require.NoError(t, c.AssignIssue(ctx, "I_5", "BOT_1"))

	created, err := c.CreateIssue(ctx, "Refactor: codebase maintenance", "- [ ] tidy", []string{"BOT_1"})
	require.NoError(t, err)
	assert.Equal(t, 77, created.Number)
	assert.Equal(t, "I_77", created.ID)

	// The repository id is cached.
	_, err = c.CreateIssue(ctx, "again", "", nil)
	require.NoError(t, err)

	require.NoError(t, c.AddLabel(ctx, "I_77", "LA_2"))

	var assign, create, label, repoLookups int
	for _, q := range f.recorded() {
		input, _ := q.Variables["input"].(map[string]interface{})
		switch {
		case strings.Contains(q.Query, "addAssigneesToAssignable("):
			assign++
			assert.Equal(t, "I_5", input["assignableId"])
			assert.Equal(t, []interface{}{"BOT_1"}, input["assigneeIds"])
		case strings.Contains(q.Query, "createIssue("):
			create++
			assert.Equal(t, "R_1", input["repositoryId"])
		case strings.Contains(q.Query, "addLabelsToLabelable("):
			label++
			assert.Equal(t, []interface{}{"LA_2"}, input["labelIds"])
		default:
			repoLookups++
		}
	}
	assert.Equal(t, 1, assign)
	assert.Equal(t, 2, create)
	assert.Equal(t, 1, label)
	assert.Equal(t, 1, repoLookups)
}

func TestMutationsAreNotRetried(t *testing.T) {
	f := &fakeGitHub{t: t, gqlFails: 1}
	c := newTestClient(t, f, 10*time.Second)

	err := c.AssignIssue(context.Background(), "I_5", "BOT_1")
	require.Error(t, err)
	assert.Len(t, f.recorded(), 1)
}

func TestIsRetryableError(t *testing.T) {
	status := func(code int) error {
		return &gh.ErrorResponse{Response: &http.Response{StatusCode: code}}
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{"rate limit", &gh.RateLimitError{}, true},
		{"abuse limit", &gh.AbuseRateLimitError{}, true},
		{"server error", status(http.StatusBadGateway), true},
		{"too many requests", status(http.StatusTooManyRequests), true},
		{"not found", status(http.StatusNotFound), false},
		{"unauthorized", status(http.StatusUnauthorized), false},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"graphql 502", errors.New("non-200 OK status code: 502 Bad Gateway body: \"\""), true},
		{"graphql 401", errors.New("non-200 OK status code: 401 Unauthorized body: \"\""), false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"graphql field error", errors.New("Could not resolve to a Repository"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestPacedTransportHonorsContext(t *testing.T) {
	f := &fakeGitHub{t: t}
	c := newTestClient(t, f, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListLabels(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, atomic.LoadInt32(&f.restCalls))
}
