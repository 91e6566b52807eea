package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v79/github"
	"github.com/shurcooL/githubv4"

	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

// issueNode is the GraphQL selection for one issue.
type issueNode struct {
	ID        githubv4.ID
	Number    githubv4.Int
	Title     githubv4.String
	URL       githubv4.String
	Body      githubv4.String
	State     githubv4.IssueState
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	ClosedAt  *githubv4.DateTime
	Assignees struct {
		Nodes []struct {
			Login githubv4.String
		}
	} `graphql:"assignees(first: 10)"`
	Labels struct {
		Nodes []struct {
			Name githubv4.String
		}
	} `graphql:"labels(first: 50)"`
	SubIssues struct {
		TotalCount githubv4.Int
	} `graphql:"subIssues(first: 1)"`
	TrackedInIssues struct {
		TotalCount githubv4.Int
	} `graphql:"trackedInIssues(first: 1)"`
	Parent *struct {
		Number githubv4.Int
	}
}

func (n *issueNode) toIssue() types.Issue {
	issue := types.Issue{
		ID:                  fmt.Sprint(n.ID),
		Number:              int(n.Number),
		Title:               string(n.Title),
		URL:                 string(n.URL),
		Body:                string(n.Body),
		State:               types.State(strings.ToLower(string(n.State))),
		SubIssueCount:       int(n.SubIssues.TotalCount),
		ParentTrackingCount: int(n.TrackedInIssues.TotalCount),
		CreatedAt:           n.CreatedAt.Time,
		UpdatedAt:           n.UpdatedAt.Time,
	}
	// A native parent is usually also a tracker; count it only when nothing else does.
	if n.Parent != nil && issue.ParentTrackingCount == 0 {
		issue.ParentTrackingCount = 1
	}
	if n.ClosedAt != nil {
		at := n.ClosedAt.Time
		issue.ClosedAt = &at
	}
	for _, a := range n.Assignees.Nodes {
		issue.Assignees = append(issue.Assignees, string(a.Login))
	}
	names := make([]labels.Node, 0, len(n.Labels.Nodes))
	for _, l := range n.Labels.Nodes {
		names = append(names, labels.Node{Name: string(l.Name)})
	}
	issue.Labels = labels.FromNodes(names)
	return issue
}

type issuesQuery struct {
	Repository struct {
		Issues struct {
			Nodes    []issueNode
			PageInfo struct {
				EndCursor   githubv4.String
				HasNextPage bool
			}
		} `graphql:"issues(first: $first, after: $cursor, states: $states, orderBy: $orderBy, filterBy: $filterBy)"`
	} `graphql:"repository(owner: $owner, name: $repo)"`
}

// ListIssues lists issues through GraphQL, paginating until the filter's limit or
// the last page. An assignee filter is served by REST, which supports it directly.
func (c *Client) ListIssues(ctx context.Context, filter tracker.IssueFilter) ([]types.Issue, error) {
	if filter.Assignee != "" {
		return c.listAssigned(ctx, filter)
	}

	vars := c.repoVars()
	vars["states"] = []githubv4.IssueState{issueState(filter.State)}
	vars["orderBy"] = issueOrder(filter.Order)
	filterBy := githubv4.IssueFilters{}
	if len(filter.Labels) > 0 {
		names := make([]githubv4.String, 0, len(filter.Labels))
		for _, l := range filter.Labels {
			names = append(names, githubv4.String(l))
		}
		filterBy.Labels = &names
	}
	vars["filterBy"] = filterBy
	vars["cursor"] = (*githubv4.String)(nil)

	var out []types.Issue
	for {
		var q issuesQuery
		first := PageSize
		if filter.Limit > 0 && filter.Limit-len(out) < first {
			first = filter.Limit - len(out)
		}
		vars["first"] = githubv4.Int(int32(first)) //nolint:gosec // bounded by PageSize

		err := c.withRetry(ctx, func() error {
			return c.gql.Query(ctx, &q, vars)
		})
		if err != nil {
			return nil, fmt.Errorf("listing issues: %w", err)
		}
		for i := range q.Repository.Issues.Nodes {
			out = append(out, q.Repository.Issues.Nodes[i].toIssue())
		}

		page := q.Repository.Issues.PageInfo
		if !page.HasNextPage || (filter.Limit > 0 && len(out) >= filter.Limit) {
			break
		}
		cursor := page.EndCursor
		vars["cursor"] = githubv4.NewString(cursor)
	}
	return out, nil
}

// listAssigned lists issues assigned to a login through REST. Pull requests are
// dropped.
func (c *Client) listAssigned(ctx context.Context, filter tracker.IssueFilter) ([]types.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       restState(filter.State),
		Assignee:    filter.Assignee,
		Labels:      filter.Labels,
		Sort:        "created",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: PageSize},
	}
	if filter.Order == tracker.OrderUpdatedDesc {
		opts.Sort, opts.Direction = "updated", "desc"
	}

	var out []types.Issue
	for {
		var page []*gh.Issue
		var resp *gh.Response
		err := c.withRetry(ctx, func() error {
			var err error
			page, resp, err = c.rest.Issues.ListByRepo(ctx, c.owner, c.repo, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing issues assigned to %s: %w", filter.Assignee, err)
		}
		for _, issue := range page {
			if issue.IsPullRequest() {
				continue
			}
			out = append(out, fromREST(issue))
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return out, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

func fromREST(issue *gh.Issue) types.Issue {
	out := types.Issue{
		ID:        issue.GetNodeID(),
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		URL:       issue.GetHTMLURL(),
		Body:      issue.GetBody(),
		State:     types.State(issue.GetState()),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
	if issue.ClosedAt != nil {
		at := issue.ClosedAt.Time
		out.ClosedAt = &at
	}
	for _, u := range issue.Assignees {
		out.Assignees = append(out.Assignees, u.GetLogin())
	}
	names := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		names = append(names, l.GetName())
	}
	out.Labels = labels.New(names...)
	return out
}

func issueState(s types.State) githubv4.IssueState {
	if s == types.StateClosed {
		return githubv4.IssueStateClosed
	}
	return githubv4.IssueStateOpen
}

func restState(s types.State) string {
	if s == "" {
		return "all"
	}
	return string(s)
}

func issueOrder(o tracker.Order) githubv4.IssueOrder {
	if o == tracker.OrderUpdatedDesc {
		return githubv4.IssueOrder{Field: githubv4.IssueOrderFieldUpdatedAt, Direction: githubv4.OrderDirectionDesc}
	}
	return githubv4.IssueOrder{Field: githubv4.IssueOrderFieldCreatedAt, Direction: githubv4.OrderDirectionAsc}
}
