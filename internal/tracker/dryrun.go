package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/assignbot/internal/events"
	"github.com/steveyegge/assignbot/internal/types"
)

// DryRunIssueID is the placeholder ID returned by DryRun.CreateIssue.
const DryRunIssueID = "dry-run"

// DryRun wraps a Client so that reads pass through and mutations only log the
// intended action. The full decision process still runs.
type DryRun struct {
	Client
	log *events.Logger
}

// NewDryRun wraps c.
func NewDryRun(c Client, log *events.Logger) *DryRun {
	return &DryRun{Client: c, log: log}
}

// AssignIssue logs the assignment instead of performing it.
func (d *DryRun) AssignIssue(ctx context.Context, issueID, botID string) error {
	d.log.Emit(ctx, events.EventTypeDryRunAction, events.SeverityInfo, 0,
		"Dry run: would assign issue",
		map[string]interface{}{
			"action":   "assign_issue",
			"issue_id": issueID,
			"bot_id":   botID,
		})
	return nil
}

// CreateIssue logs the creation and returns a placeholder issue.
func (d *DryRun) CreateIssue(ctx context.Context, title, body string, assigneeIDs []string) (*types.Issue, error) {
	d.log.Emit(ctx, events.EventTypeDryRunAction, events.SeverityInfo, 0,
		fmt.Sprintf("Dry run: would create issue %q", title),
		map[string]interface{}{
			"action":       "create_issue",
			"title":        title,
			"assignee_ids": assigneeIDs,
			"body_bytes":   len(body),
		})
	now := time.Now().UTC()
	return &types.Issue{
		ID:        DryRunIssueID,
		Title:     title,
		Body:      body,
		State:     types.StateOpen,
		Assignees: nil,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AddLabel logs the label attachment instead of performing it.
func (d *DryRun) AddLabel(ctx context.Context, issueID, labelID string) error {
	d.log.Emit(ctx, events.EventTypeDryRunAction, events.SeverityInfo, 0,
		"Dry run: would attach label",
		map[string]interface{}{
			"action":   "add_label",
			"issue_id": issueID,
			"label_id": labelID,
		})
	return nil
}
