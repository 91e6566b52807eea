// Package refactor implements the maintenance-mode state machine.
//
// The controller decides, once per run, whether the engine operates in AUTO or
// REFACTOR mode. After an issue is closed in AUTO mode it looks at the most recent
// completions; if none of the last N carried the refactor label, the run switches
// to REFACTOR. In REFACTOR mode an existing unassigned refactor issue is reused,
// or a new one is created and assigned to the bot.
package refactor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/assignbot/internal/events"
	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

const (
	// DefaultThreshold is the number of recent closed issues inspected (N).
	DefaultThreshold = 4
	// DefaultTitlePrefix is prepended to the UTC timestamp of a created issue.
	DefaultTitlePrefix = "Refactor: codebase maintenance"
)

// PoolSelector is the part of selection.Selector the controller needs.
type PoolSelector interface {
	SelectLabelPool(ctx context.Context, label string, policy types.Policy) (*types.Issue, error)
}

// Action is what the controller did in REFACTOR mode.
type Action string

const (
	ActionAssignedExisting Action = "assigned_existing"
	ActionCreated          Action = "created"
)

// Outcome reports the result of a REFACTOR run.
type Outcome struct {
	Action Action
	Issue  *types.Issue
	// LabelErr is set when the created issue could not be labeled. The issue is
	// still created and assigned; the run is a partial success.
	LabelErr error
}

// Partial reports whether the run only partially succeeded.
func (o *Outcome) Partial() bool {
	return o != nil && o.LabelErr != nil
}

// ModeDecision explains the effective mode.
type ModeDecision struct {
	Mode    types.Mode
	Reason  string
	Checked []int // Closed issue numbers inspected, most recent first
}

// Controller drives the refactor cadence and maintenance issue lifecycle.
type Controller struct {
	tracker  tracker.Client
	selector PoolSelector
	log      *events.Logger

	Threshold   int    // Lookback window N (default: 4)
	TitlePrefix string // Title prefix for created issues (default: DefaultTitlePrefix)

	now func() time.Time
}

// NewController creates a controller with default threshold and title prefix.
func NewController(client tracker.Client, selector PoolSelector, log *events.Logger) *Controller {
	return &Controller{
		tracker:     client,
		selector:    selector,
		log:         log,
		Threshold:   DefaultThreshold,
		TitlePrefix: DefaultTitlePrefix,
		now:         time.Now,
	}
}

// ResolveMode returns the effective mode for this run. The cadence check only runs
// for issue-closed triggers in AUTO mode; anything else keeps the configured mode.
// A listing failure is fatal.
func (c *Controller) ResolveMode(ctx context.Context, trigger types.Trigger, configured types.Mode) (ModeDecision, error) {
	if configured != types.ModeAuto {
		return ModeDecision{Mode: configured, Reason: "mode set explicitly"}, nil
	}
	if trigger != types.TriggerIssueClosed {
		return ModeDecision{Mode: configured, Reason: fmt.Sprintf("trigger %s skips cadence check", trigger)}, nil
	}

	n := c.Threshold
	if n <= 0 {
		n = DefaultThreshold
	}
	closed, err := c.tracker.ListIssues(ctx, tracker.IssueFilter{
		State: types.StateClosed,
		Order: tracker.OrderUpdatedDesc,
		Limit: n + 1,
	})
	if err != nil {
		return ModeDecision{}, fmt.Errorf("listing recently closed issues: %w", err)
	}

	window := closed
	if len(window) > n {
		window = window[:n]
	}
	decision := ModeDecision{Mode: types.ModeRefactor}
	for _, issue := range window {
		decision.Checked = append(decision.Checked, issue.Number)
	}
	for _, issue := range window {
		if issue.Labels.Has(labels.LabelRefactor) {
			decision.Mode = types.ModeAuto
			decision.Reason = fmt.Sprintf("recent refactor activity in #%d", issue.Number)
			return decision, nil
		}
	}
	decision.Reason = fmt.Sprintf("no refactor label among last %d closed issues", len(window))
	return decision, nil
}

// Run assigns an existing refactor issue or creates one. Selection, assignment and
// creation failures are fatal; a failure to label the created issue is not.
func (c *Controller) Run(ctx context.Context, bot *types.Identity, policy types.Policy) (*Outcome, error) {
	existing, err := c.selector.SelectLabelPool(ctx, labels.LabelRefactor, policy.WithoutRefactorExclusion())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := c.tracker.AssignIssue(ctx, existing.ID, bot.ID); err != nil {
			return nil, fmt.Errorf("assigning refactor issue #%d: %w", existing.Number, err)
		}
		c.log.Emit(ctx, events.EventTypeIssueAssigned, events.SeverityInfo, existing.Number,
			fmt.Sprintf("Assigned existing refactor issue %s to %s", existing.Ref(), bot.Login),
			map[string]interface{}{
				"bot":  bot.Login,
				"mode": types.ModeRefactor.String(),
			})
		return &Outcome{Action: ActionAssignedExisting, Issue: existing}, nil
	}

	title := c.Title()
	created, err := c.tracker.CreateIssue(ctx, title, MaintenanceChecklist, []string{bot.ID})
	if err != nil {
		return nil, fmt.Errorf("creating refactor issue: %w", err)
	}
	c.log.Emit(ctx, events.EventTypeIssueCreated, events.SeverityInfo, created.Number,
		fmt.Sprintf("Created refactor issue %q assigned to %s", title, bot.Login),
		map[string]interface{}{
			"bot":   bot.Login,
			"title": title,
			"url":   created.URL,
		})

	out := &Outcome{Action: ActionCreated, Issue: created}
	if err := c.attachLabel(ctx, created); err != nil {
		out.LabelErr = err
		c.log.Emit(ctx, events.EventTypeLabelAttachFailed, events.SeverityWarning, created.Number,
			fmt.Sprintf("Refactor issue created but %s label could not be attached", labels.LabelRefactor),
			map[string]interface{}{
				"label": labels.LabelRefactor,
				"error": err.Error(),
			})
		return out, nil
	}
	c.log.Emit(ctx, events.EventTypeLabelAttached, events.SeverityInfo, created.Number,
		fmt.Sprintf("Attached %s label", labels.LabelRefactor),
		map[string]interface{}{"label": labels.LabelRefactor})
	return out, nil
}

// Title renders the title of a new maintenance issue at the current time.
func (c *Controller) Title() string {
	prefix := c.TitlePrefix
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	return fmt.Sprintf("%s %s", prefix, c.now().UTC().Format(time.RFC3339))
}

func (c *Controller) attachLabel(ctx context.Context, issue *types.Issue) error {
	label, err := c.findLabel(ctx, labels.LabelRefactor)
	if err != nil {
		return fmt.Errorf("looking up label: %w", err)
	}
	if err := c.tracker.AddLabel(ctx, issue.ID, label.ID); err != nil {
		return fmt.Errorf("adding label %s: %w", label.Name, err)
	}
	return nil
}

// findLabel resolves a label by name, scanning the full label list when the
// direct lookup fails for a reason other than the label not existing.
func (c *Controller) findLabel(ctx context.Context, name string) (*types.Label, error) {
	label, err := c.tracker.GetLabel(ctx, name)
	if err == nil || errors.Is(err, tracker.ErrLabelNotFound) {
		return label, err
	}
	all, listErr := c.tracker.ListLabels(ctx)
	if listErr != nil {
		return nil, errors.Join(err, listErr)
	}
	for _, l := range all {
		if strings.EqualFold(l.Name, name) {
			found := l
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", tracker.ErrLabelNotFound, name)
}
