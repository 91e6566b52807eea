package snapshot

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/assignbot/internal/engine"
	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

func loadFixture(t *testing.T) *Tracker {
	t.Helper()
	tr, err := Load("testdata/widgets.json")
	require.NoError(t, err)
	return tr
}

func TestLoadNormalizesShapes(t *testing.T) {
	tr := loadFixture(t)
	ctx := context.Background()
	assert.Equal(t, "octo/widgets", tr.Repository())

	open, err := tr.ListIssues(ctx, tracker.IssueFilter{
		State:  types.StateOpen,
		Labels: []string{labels.LabelBug},
		Order:  tracker.OrderCreatedAsc,
	})
	require.NoError(t, err)
	require.Len(t, open, 3)

	numbers := []int{open[0].Number, open[1].Number, open[2].Number}
	assert.Equal(t, []int{79, 80, 114}, numbers)
	for _, issue := range open {
		assert.True(t, issue.Labels.Has(labels.LabelBug), "#%d label shape", issue.Number)
		assert.Equal(t, types.StateOpen, issue.State, "missing state defaults to open")
	}
	assert.Equal(t, "I_79", open[0].ID)
	assert.True(t, open[2].Assignees.Contains("octocat"))
}

func TestListIssuesClosedByUpdate(t *testing.T) {
	tr := loadFixture(t)

	closed, err := tr.ListIssues(context.Background(), tracker.IssueFilter{
		State: types.StateClosed,
		Order: tracker.OrderUpdatedDesc,
		Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, 121, closed[0].Number)
	require.NotNil(t, closed[0].ClosedAt)
}

func TestListDirectChildren(t *testing.T) {
	tr := loadFixture(t)
	ctx := context.Background()

	refs, err := tr.ListDirectChildren(ctx, 79, 1)
	require.NoError(t, err)
	assert.Equal(t, []types.IssueRef{{Owner: "octo", Repo: "widgets", Number: 81}}, refs)

	refs, err = tr.ListDirectChildren(ctx, 114, 1)
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = tr.ListDirectChildren(ctx, 80, 1)
	assert.ErrorIs(t, err, ErrChildrenUnavailable)
}

func TestMutationsAreRecorded(t *testing.T) {
	tr := loadFixture(t)
	tr.now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, tr.AssignIssue(ctx, "I_80", "BOT_1"))
	require.NoError(t, tr.AssignIssue(ctx, "I_80", "BOT_1"))

	created, err := tr.CreateIssue(ctx, "Refactor: codebase maintenance", "- [ ] tidy", []string{"BOT_1"})
	require.NoError(t, err)
	assert.Equal(t, 122, created.Number, "numbered after the highest existing issue")
	assert.Equal(t, "https://github.com/octo/widgets/issues/122", created.URL)
	assert.True(t, created.Assignees.Contains("Copilot"))

	label, err := tr.GetLabel(ctx, "REFACTOR")
	require.NoError(t, err)
	require.NoError(t, tr.AddLabel(ctx, created.ID, label.ID))

	mine, err := tr.ListIssues(ctx, tracker.IssueFilter{State: types.StateOpen, Assignee: "Copilot"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, types.Assignees{"Copilot"}, mine[0].Assignees, "repeat assignment is idempotent")
	assert.True(t, mine[1].Labels.Has(labels.LabelRefactor))

	kinds := make([]MutationKind, 0, 4)
	for _, m := range tr.Mutations() {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []MutationKind{MutationAssign, MutationAssign, MutationCreate, MutationAddLabel}, kinds)
}

func TestMutationErrors(t *testing.T) {
	tr := loadFixture(t)
	ctx := context.Background()

	assert.Error(t, tr.AssignIssue(ctx, "I_999", "BOT_1"))
	assert.ErrorIs(t, tr.AddLabel(ctx, "I_80", "LA_missing"), tracker.ErrLabelNotFound)
	_, err := tr.GetLabel(ctx, "wontfix")
	assert.ErrorIs(t, err, tracker.ErrLabelNotFound)
	assert.Empty(t, tr.Mutations())
}

func TestBotIdentity(t *testing.T) {
	tr := loadFixture(t)
	bot, err := tr.BotIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &types.Identity{ID: "BOT_1", Login: "Copilot"}, bot)

	empty, err := New(File{})
	require.NoError(t, err)
	_, err = empty.BotIdentity(context.Background())
	assert.ErrorIs(t, err, tracker.ErrBotNotFound)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"not json", `{`, "decoding snapshot"},
		{"missing number", `{"issues": [{"title": "x"}]}`, "has no number"},
		{"duplicate", `{"issues": [{"number": 1}, {"number": 1}]}`, "duplicate issue #1"},
		{"bad state", `{"issues": [{"number": 1, "state": "merged"}]}`, "invalid state"},
		{"bad children key", `{"issues": [], "children": {"abc": []}}`, "invalid children key"},
		{"bad error key", `{"issues": [], "children_errors": {"x": "boom"}}`, "invalid children_errors key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/does-not-exist.json")
	assert.Error(t, err)
}

// The fixture replays the parent/child scenario end to end: #79 tracks a child,
// #80's children lookup fails but its body has no task list, so it is taken.
func TestEngineRunOverFixture(t *testing.T) {
	tr := loadFixture(t)

	cfg := engine.DefaultConfig()
	cfg.Tracker = tr
	cfg.Repository = tr.Repository()
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	res, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAssigned, res.Outcome)
	require.NotNil(t, res.Issue)
	assert.Equal(t, 80, res.Issue.Number)

	muts := tr.Mutations()
	require.Len(t, muts, 1)
	assert.Equal(t, Mutation{Kind: MutationAssign, IssueID: "I_80", Number: 80, Value: "BOT_1"}, muts[0])
}

func TestEngineDryRunOverFixture(t *testing.T) {
	tr := loadFixture(t)

	cfg := engine.DefaultConfig()
	cfg.Tracker = tr
	cfg.DryRun = true
	cfg.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	res, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 80, res.Issue.Number)
	assert.Empty(t, tr.Mutations())
}
