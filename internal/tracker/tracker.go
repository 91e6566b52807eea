// Package tracker defines the issue tracker collaborator used by the assignment engine.
package tracker

import (
	"context"
	"errors"

	"github.com/steveyegge/assignbot/internal/types"
)

var (
	// ErrBotNotFound means the bot account is not among the repository's assignable actors.
	ErrBotNotFound = errors.New("bot account not found among assignable actors")
	// ErrLabelNotFound means a label lookup by name found nothing.
	ErrLabelNotFound = errors.New("label not found")
)

// Order controls the ordering of listed issues.
type Order string

const (
	// OrderCreatedAsc lists oldest-created first (selection pools)
	OrderCreatedAsc Order = "created_asc"
	// OrderUpdatedDesc lists most-recently-updated first (refactor cadence check)
	OrderUpdatedDesc Order = "updated_desc"
)

// IssueFilter narrows ListIssues.
type IssueFilter struct {
	State    types.State
	Labels   []string // Issues carrying any of these labels; empty means all
	Assignee string   // Login; empty means any
	Order    Order
	Limit    int // 0 means no limit (the client paginates internally)
}

// Client is the issue tracker collaborator.
//
// Listing methods are fatal to the run when they fail; ListDirectChildren failures
// are absorbed by the sub-issue resolver. Mutations are never retried.
type Client interface {
	// ListIssues returns every issue matching the filter in the requested order.
	ListIssues(ctx context.Context, filter IssueFilter) ([]types.Issue, error)

	// ListDirectChildren returns up to limit direct children of an issue.
	// Used for existence only, never for exact counts.
	ListDirectChildren(ctx context.Context, number, limit int) ([]types.IssueRef, error)

	// ListLabels returns the repository's labels.
	ListLabels(ctx context.Context) ([]types.Label, error)

	// GetLabel looks up a label by name. Returns ErrLabelNotFound if it doesn't exist.
	GetLabel(ctx context.Context, name string) (*types.Label, error)

	// AssignIssue adds the bot as an assignee.
	AssignIssue(ctx context.Context, issueID, botID string) error

	// CreateIssue creates an issue assigned to assigneeIDs.
	CreateIssue(ctx context.Context, title, body string, assigneeIDs []string) (*types.Issue, error)

	// AddLabel attaches a label to an issue.
	AddLabel(ctx context.Context, issueID, labelID string) error

	// BotIdentity resolves the bot account. Returns ErrBotNotFound if it can't be assigned.
	BotIdentity(ctx context.Context) (*types.Identity, error)
}
