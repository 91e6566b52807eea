package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v79/github"

	"github.com/steveyegge/assignbot/internal/types"
)

// ListDirectChildren lists up to limit sub-issues through the REST sub-issues
// endpoint. Only one page is fetched since callers test existence.
func (c *Client) ListDirectChildren(ctx context.Context, number, limit int) ([]types.IssueRef, error) {
	if limit <= 0 || limit > PageSize {
		limit = PageSize
	}
	opts := &gh.IssueListOptions{ListOptions: gh.ListOptions{PerPage: limit}}

	var subs []*gh.SubIssue
	err := c.withRetry(ctx, func() error {
		var err error
		subs, _, err = c.rest.SubIssue.ListByIssue(ctx, c.owner, c.repo, int64(number), opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing sub-issues of #%d: %w", number, err)
	}

	refs := make([]types.IssueRef, 0, len(subs))
	for _, sub := range subs {
		if sub == nil || sub.Number == nil {
			continue
		}
		ref := types.IssueRef{Owner: c.owner, Repo: c.repo, Number: *sub.Number}
		if r := sub.Repository; r != nil {
			if r.Owner != nil && r.Owner.Login != nil {
				ref.Owner = *r.Owner.Login
			}
			if r.Name != nil {
				ref.Repo = *r.Name
			}
		}
		refs = append(refs, ref)
		if len(refs) == limit {
			break
		}
	}
	return refs, nil
}
