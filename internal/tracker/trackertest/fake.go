// Package trackertest provides an in-memory tracker.Client for tests.
package trackertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

// Fake is an in-memory tracker. Exported fields may be set before use; methods are
// safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	Issues   []types.Issue
	Children map[int][]types.IssueRef // Direct children by parent number
	Labels   []types.Label
	Bot      *types.Identity

	// Injected failures
	ChildrenErr    map[int]error // Per-issue ListDirectChildren failure
	ListErr        error         // Every ListIssues call fails
	ListErrByLabel map[string]error
	AssignErr      error
	CreateErr      error
	AddLabelErr    error
	GetLabelErr    error // GetLabel fails; ListLabels still answers
	IdentityErr    error

	// Recorded calls
	ListCalls     []tracker.IssueFilter
	ChildrenCalls []int
	Assigned      []Assignment
	Created       []types.Issue
	LabelsAdded   []LabelAttachment

	nextNumber int
}

// Assignment records an AssignIssue call.
type Assignment struct {
	IssueID string
	BotID   string
}

// LabelAttachment records an AddLabel call.
type LabelAttachment struct {
	IssueID string
	LabelID string
}

// New returns a fake with a default bot identity and a refactor label.
func New(issues ...types.Issue) *Fake {
	return &Fake{
		Issues:   issues,
		Children: map[int][]types.IssueRef{},
		Labels: []types.Label{
			{ID: "LA_refactor", Name: labels.LabelRefactor},
			{ID: "LA_bug", Name: labels.LabelBug},
		},
		Bot:         &types.Identity{ID: "BOT_1", Login: "Copilot"},
		ChildrenErr: map[int]error{},
	}
}

// ListIssues filters and orders the in-memory issues.
func (f *Fake) ListIssues(ctx context.Context, filter tracker.IssueFilter) ([]types.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls = append(f.ListCalls, filter)

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	for _, l := range filter.Labels {
		if err := f.ListErrByLabel[l]; err != nil {
			return nil, err
		}
	}

	var out []types.Issue
	for _, issue := range f.Issues {
		if filter.State != "" && issue.State != filter.State {
			continue
		}
		if len(filter.Labels) > 0 && !issue.Labels.HasAny(filter.Labels) {
			continue
		}
		if filter.Assignee != "" && !issue.Assignees.Contains(filter.Assignee) {
			continue
		}
		out = append(out, issue)
	}

	switch filter.Order {
	case tracker.OrderUpdatedDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	case tracker.OrderCreatedAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListDirectChildren returns the configured children or the injected error.
func (f *Fake) ListDirectChildren(ctx context.Context, number, limit int) ([]types.IssueRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChildrenCalls = append(f.ChildrenCalls, number)

	if err := f.ChildrenErr[number]; err != nil {
		return nil, err
	}
	refs := f.Children[number]
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// ListLabels returns the configured labels.
func (f *Fake) ListLabels(ctx context.Context) ([]types.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Label, len(f.Labels))
	copy(out, f.Labels)
	return out, nil
}

// GetLabel finds a configured label by name.
func (f *Fake) GetLabel(ctx context.Context, name string) (*types.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetLabelErr != nil {
		return nil, f.GetLabelErr
	}
	for _, l := range f.Labels {
		if strings.EqualFold(l.Name, name) {
			label := l
			return &label, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", tracker.ErrLabelNotFound, name)
}

// AssignIssue records the assignment and updates the stored issue.
func (f *Fake) AssignIssue(ctx context.Context, issueID, botID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AssignErr != nil {
		return f.AssignErr
	}
	f.Assigned = append(f.Assigned, Assignment{IssueID: issueID, BotID: botID})
	for i := range f.Issues {
		if f.Issues[i].ID == issueID && f.Bot != nil {
			f.Issues[i].Assignees = append(f.Issues[i].Assignees, f.Bot.Login)
		}
	}
	return nil
}

// CreateIssue records and stores a new open issue.
func (f *Fake) CreateIssue(ctx context.Context, title, body string, assigneeIDs []string) (*types.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	if f.nextNumber == 0 {
		f.nextNumber = 1000
	}
	f.nextNumber++

	var assignees types.Assignees
	for _, id := range assigneeIDs {
		if f.Bot != nil && id == f.Bot.ID {
			assignees = append(assignees, f.Bot.Login)
		}
	}
	now := time.Now().UTC()
	issue := types.Issue{
		ID:        fmt.Sprintf("I_%d", f.nextNumber),
		Number:    f.nextNumber,
		Title:     title,
		Body:      body,
		State:     types.StateOpen,
		Assignees: assignees,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.Issues = append(f.Issues, issue)
	f.Created = append(f.Created, issue)
	return &issue, nil
}

// AddLabel records the attachment.
func (f *Fake) AddLabel(ctx context.Context, issueID, labelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AddLabelErr != nil {
		return f.AddLabelErr
	}
	f.LabelsAdded = append(f.LabelsAdded, LabelAttachment{IssueID: issueID, LabelID: labelID})
	return nil
}

// BotIdentity returns the configured bot or ErrBotNotFound.
func (f *Fake) BotIdentity(ctx context.Context) (*types.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.IdentityErr != nil {
		return nil, f.IdentityErr
	}
	if f.Bot == nil {
		return nil, tracker.ErrBotNotFound
	}
	bot := *f.Bot
	return &bot, nil
}

// ChildrenCallCount returns how many times ListDirectChildren was called.
func (f *Fake) ChildrenCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ChildrenCalls)
}

// Mutations returns the total number of recorded mutations.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Assigned) + len(f.Created) + len(f.LabelsAdded)
}

var _ tracker.Client = (*Fake)(nil)
