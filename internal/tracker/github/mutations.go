package github

import (
	"context"
	"fmt"

	"github.com/shurcooL/githubv4"

	"github.com/steveyegge/assignbot/internal/types"
)

// AssignIssue adds botID to the issue's assignees. Existing assignees are kept.
func (c *Client) AssignIssue(ctx context.Context, issueID, botID string) error {
	var m struct {
		AddAssigneesToAssignable struct {
			ClientMutationID *githubv4.String
		} `graphql:"addAssigneesToAssignable(input: $input)"`
	}
	input := githubv4.AddAssigneesToAssignableInput{
		AssignableID: githubv4.ID(issueID),
		AssigneeIDs:  []githubv4.ID{githubv4.ID(botID)},
	}
	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return fmt.Errorf("assigning issue %s: %w", issueID, err)
	}
	c.log.Info("assigned issue", "issue_id", issueID, "bot_id", botID)
	return nil
}

// CreateIssue opens an issue with the given assignees.
func (c *Client) CreateIssue(ctx context.Context, title, body string, assigneeIDs []string) (*types.Issue, error) {
	repoID, err := c.repositoryID(ctx)
	if err != nil {
		return nil, err
	}

	var m struct {
		CreateIssue struct {
			Issue issueNode
		} `graphql:"createIssue(input: $input)"`
	}
	input := githubv4.CreateIssueInput{
		RepositoryID: repoID,
		Title:        githubv4.String(title),
		Body:         githubv4.NewString(githubv4.String(body)),
	}
	if len(assigneeIDs) > 0 {
		ids := make([]githubv4.ID, 0, len(assigneeIDs))
		for _, id := range assigneeIDs {
			ids = append(ids, githubv4.ID(id))
		}
		input.AssigneeIDs = &ids
	}
	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return nil, fmt.Errorf("creating issue %q: %w", title, err)
	}

	issue := m.CreateIssue.Issue.toIssue()
	c.log.Info("created issue", "issue", issue.Number, "title", title)
	return &issue, nil
}

// AddLabel attaches labelID to the issue.
func (c *Client) AddLabel(ctx context.Context, issueID, labelID string) error {
	var m struct {
		AddLabelsToLabelable struct {
			ClientMutationID *githubv4.String
		} `graphql:"addLabelsToLabelable(input: $input)"`
	}
	input := githubv4.AddLabelsToLabelableInput{
		LabelableID: githubv4.ID(issueID),
		LabelIDs:    []githubv4.ID{githubv4.ID(labelID)},
	}
	if err := c.gql.Mutate(ctx, &m, input, nil); err != nil {
		return fmt.Errorf("adding label %s to issue %s: %w", labelID, issueID, err)
	}
	return nil
}

func (c *Client) repositoryID(ctx context.Context) (githubv4.ID, error) {
	if c.repoID != nil {
		return c.repoID, nil
	}
	var q struct {
		Repository struct {
			ID githubv4.ID
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}
	err := c.withRetry(ctx, func() error {
		return c.gql.Query(ctx, &q, c.repoVars())
	})
	if err != nil {
		return nil, fmt.Errorf("looking up repository id: %w", err)
	}
	c.repoID = q.Repository.ID
	return c.repoID, nil
}
