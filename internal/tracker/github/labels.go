package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v79/github"
	"github.com/shurcooL/githubv4"

	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

// ListLabels lists every label in the repository.
func (c *Client) ListLabels(ctx context.Context) ([]types.Label, error) {
	opts := &gh.ListOptions{PerPage: PageSize}

	var out []types.Label
	for {
		var page []*gh.Label
		var resp *gh.Response
		err := c.withRetry(ctx, func() error {
			var err error
			page, resp, err = c.rest.Issues.ListLabels(ctx, c.owner, c.repo, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing labels: %w", err)
		}
		for _, l := range page {
			out = append(out, types.Label{ID: l.GetNodeID(), Name: l.GetName()})
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetLabel looks a label up by exact name.
func (c *Client) GetLabel(ctx context.Context, name string) (*types.Label, error) {
	var q struct {
		Repository struct {
			Label *struct {
				ID   githubv4.ID
				Name githubv4.String
			} `graphql:"label(name: $name)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	vars := c.repoVars()
	vars["name"] = githubv4.String(name)

	err := c.withRetry(ctx, func() error {
		return c.gql.Query(ctx, &q, vars)
	})
	if err != nil {
		return nil, fmt.Errorf("looking up label %q: %w", name, err)
	}
	if q.Repository.Label == nil {
		return nil, fmt.Errorf("%w: %s", tracker.ErrLabelNotFound, name)
	}
	return &types.Label{
		ID:   fmt.Sprint(q.Repository.Label.ID),
		Name: string(q.Repository.Label.Name),
	}, nil
}
