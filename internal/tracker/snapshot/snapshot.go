// Package snapshot implements tracker.Client over a JSON file.
//
// A snapshot captures a repository's issues, sub-issue children, labels and the
// bot account so a decision can be replayed offline. Mutations are applied to the
// in-memory copy and recorded; the file is never written.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

// ErrChildrenUnavailable is returned for issues listed under children_errors.
var ErrChildrenUnavailable = errors.New("sub-issue listing unavailable")

// File is the on-disk snapshot format.
type File struct {
	Repository string                      `json:"repository,omitempty"`
	Bot        *types.Identity             `json:"bot,omitempty"`
	Labels     []types.Label               `json:"labels,omitempty"`
	Issues     []types.Issue               `json:"issues"`
	Children   map[string][]types.IssueRef `json:"children,omitempty"`

	// ChildrenErrors simulates transport failures for specific issue numbers.
	ChildrenErrors map[string]string `json:"children_errors,omitempty"`
}

// MutationKind names a recorded mutation.
type MutationKind string

const (
	MutationAssign   MutationKind = "assign"
	MutationCreate   MutationKind = "create"
	MutationAddLabel MutationKind = "add_label"
)

// Mutation is one write applied to the snapshot.
type Mutation struct {
	Kind    MutationKind `json:"kind"`
	IssueID string       `json:"issue_id"`
	Number  int          `json:"number,omitempty"`
	Value   string       `json:"value,omitempty"` // Bot ID, title or label ID
}

// Tracker serves a loaded snapshot. It is safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	repository string
	bot        *types.Identity
	labels     []types.Label
	issues     []types.Issue
	children   map[int][]types.IssueRef
	childErrs  map[int]string
	mutations  []Mutation
	nextNumber int
	now        func() time.Time
}

// Load reads a snapshot file.
func Load(path string) (*Tracker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a snapshot.
func Parse(r io.Reader) (*Tracker, error) {
	var file File
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return New(file)
}

// New builds a tracker from a decoded snapshot. Issues without a state are open and
// issues without an ID get the synthetic ID "I_<number>".
func New(file File) (*Tracker, error) {
	t := &Tracker{
		repository: file.Repository,
		bot:        file.Bot,
		labels:     file.Labels,
		children:   make(map[int][]types.IssueRef, len(file.Children)),
		childErrs:  make(map[int]string, len(file.ChildrenErrors)),
		now:        time.Now,
	}

	seen := make(map[int]bool, len(file.Issues))
	for _, issue := range file.Issues {
		if issue.Number <= 0 {
			return nil, fmt.Errorf("issue %q has no number", issue.Title)
		}
		if seen[issue.Number] {
			return nil, fmt.Errorf("duplicate issue #%d", issue.Number)
		}
		seen[issue.Number] = true

		if issue.State == "" {
			issue.State = types.StateOpen
		}
		if !issue.State.IsValid() {
			return nil, fmt.Errorf("issue #%d has invalid state %q", issue.Number, issue.State)
		}
		if issue.ID == "" {
			issue.ID = "I_" + strconv.Itoa(issue.Number)
		}
		if issue.Number > t.nextNumber {
			t.nextNumber = issue.Number
		}
		t.issues = append(t.issues, issue)
	}

	for key, refs := range file.Children {
		n, err := strconv.Atoi(strings.TrimPrefix(key, "#"))
		if err != nil {
			return nil, fmt.Errorf("invalid children key %q: %w", key, err)
		}
		t.children[n] = refs
	}
	for key, msg := range file.ChildrenErrors {
		n, err := strconv.Atoi(strings.TrimPrefix(key, "#"))
		if err != nil {
			return nil, fmt.Errorf("invalid children_errors key %q: %w", key, err)
		}
		t.childErrs[n] = msg
	}
	return t, nil
}

// Repository returns the owner/name recorded in the snapshot, if any.
func (t *Tracker) Repository() string {
	return t.repository
}

// Mutations returns the writes applied so far.
func (t *Tracker) Mutations() []Mutation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Mutation(nil), t.mutations...)
}

// ListIssues filters and orders the snapshot's issues.
func (t *Tracker) ListIssues(ctx context.Context, filter tracker.IssueFilter) ([]types.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []types.Issue
	for _, issue := range t.issues {
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
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].Number < out[j].Number
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ListDirectChildren returns the recorded children, or a failure for issues under
// children_errors.
func (t *Tracker) ListDirectChildren(ctx context.Context, number, limit int) ([]types.IssueRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg, ok := t.childErrs[number]; ok {
		return nil, fmt.Errorf("%w for #%d: %s", ErrChildrenUnavailable, number, msg)
	}
	refs := t.children[number]
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return append([]types.IssueRef(nil), refs...), nil
}

// ListLabels returns the snapshot's labels.
func (t *Tracker) ListLabels(ctx context.Context) ([]types.Label, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.Label(nil), t.labels...), nil
}

// GetLabel finds a label by name, ignoring case.
func (t *Tracker) GetLabel(ctx context.Context, name string) (*types.Label, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range t.labels {
		if strings.EqualFold(l.Name, name) {
			label := l
			return &label, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", tracker.ErrLabelNotFound, name)
}

// AssignIssue adds the bot to the issue's assignees.
func (t *Tracker) AssignIssue(ctx context.Context, issueID, botID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexByID(issueID)
	if i < 0 {
		return fmt.Errorf("assigning issue: no issue with id %s", issueID)
	}
	if t.bot != nil && botID == t.bot.ID && !t.issues[i].Assignees.Contains(t.bot.Login) {
		t.issues[i].Assignees = append(t.issues[i].Assignees, t.bot.Login)
	}
	t.mutations = append(t.mutations, Mutation{
		Kind: MutationAssign, IssueID: issueID, Number: t.issues[i].Number, Value: botID,
	})
	return nil
}

// CreateIssue appends an open issue numbered after the highest existing one.
func (t *Tracker) CreateIssue(ctx context.Context, title, body string, assigneeIDs []string) (*types.Issue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextNumber++
	var assignees types.Assignees
	for _, id := range assigneeIDs {
		if t.bot != nil && id == t.bot.ID {
			assignees = append(assignees, t.bot.Login)
		}
	}
	now := t.now().UTC()
	issue := types.Issue{
		ID:        "I_" + strconv.Itoa(t.nextNumber),
		Number:    t.nextNumber,
		Title:     title,
		Body:      body,
		State:     types.StateOpen,
		Assignees: assignees,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.repository != "" {
		issue.URL = fmt.Sprintf("https://github.com/%s/issues/%d", t.repository, issue.Number)
	}
	t.issues = append(t.issues, issue)
	t.mutations = append(t.mutations, Mutation{
		Kind: MutationCreate, IssueID: issue.ID, Number: issue.Number, Value: title,
	})
	return &issue, nil
}

// AddLabel attaches a snapshot label to an issue.
func (t *Tracker) AddLabel(ctx context.Context, issueID, labelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexByID(issueID)
	if i < 0 {
		return fmt.Errorf("adding label: no issue with id %s", issueID)
	}
	name := ""
	for _, l := range t.labels {
		if l.ID == labelID {
			name = l.Name
		}
	}
	if name == "" {
		return fmt.Errorf("adding label: %w: id %s", tracker.ErrLabelNotFound, labelID)
	}
	t.issues[i].Labels = labels.New(append(t.issues[i].Labels.Names(), name)...)
	t.mutations = append(t.mutations, Mutation{
		Kind: MutationAddLabel, IssueID: issueID, Number: t.issues[i].Number, Value: labelID,
	})
	return nil
}

// BotIdentity returns the snapshot's bot account.
func (t *Tracker) BotIdentity(ctx context.Context) (*types.Identity, error) {
	if t.bot == nil || t.bot.ID == "" {
		return nil, tracker.ErrBotNotFound
	}
	bot := *t.bot
	return &bot, nil
}

func (t *Tracker) indexByID(id string) int {
	for i := range t.issues {
		if t.issues[i].ID == id {
			return i
		}
	}
	return -1
}

var _ tracker.Client = (*Tracker)(nil)
