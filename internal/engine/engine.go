// Package engine runs one assignment decision end to end.
//
// A run resolves the bot identity, decides the effective mode, asks the workload
// guard whether to proceed, and then either searches the priority pools or hands
// over to the refactor controller. Everything is fetched fresh and discarded when
// the run returns; nothing is cached between runs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/steveyegge/assignbot/internal/events"
	"github.com/steveyegge/assignbot/internal/priorities"
	"github.com/steveyegge/assignbot/internal/refactor"
	"github.com/steveyegge/assignbot/internal/selection"
	"github.com/steveyegge/assignbot/internal/subissues"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeAssigned        Outcome = "assigned"
	OutcomeCreated         Outcome = "created"
	OutcomePartial         Outcome = "partial" // Created and assigned, label not attached
	OutcomeNoSuitableIssue Outcome = "no_suitable_issue"
	OutcomeGuardRefused    Outcome = "guard_refused"
)

// Config holds everything one run needs. It is built once per invocation.
type Config struct {
	Tracker           tracker.Client
	Repository        string // owner/name, for log attribution
	Policy            types.Policy
	Trigger           types.Trigger
	LabelOverride     string
	RefactorThreshold int    // Lookback window for the cadence check (default: 4)
	RefactorTitle     string // Title prefix for created refactor issues
	DryRun            bool   // Run the full decision but suppress mutations
	Concurrency       int    // Concurrent sub-issue lookups (default: 4)
	FailSafe          bool   // Answer when sub-issue status can't be verified (default: true)
	Logger            *slog.Logger
}

// DefaultConfig returns the default run configuration. Tracker must still be set.
func DefaultConfig() *Config {
	return &Config{
		Policy: types.Policy{
			LabelPriority: priorities.Default(),
			Mode:          types.ModeAuto,
		},
		Trigger:           types.TriggerManual,
		RefactorThreshold: refactor.DefaultThreshold,
		RefactorTitle:     refactor.DefaultTitlePrefix,
		Concurrency:       selection.DefaultConcurrency,
		FailSafe:          true,
	}
}

// Result summarizes a completed run.
type Result struct {
	RunID          string
	Outcome        Outcome
	ConfiguredMode types.Mode
	Mode           types.Mode
	ModeReason     string
	Bot            *types.Identity
	Issue          *types.Issue // Assigned or created issue
	Pool           string       // Pool the issue came from (AUTO mode)
	Reason         string
	DryRun         bool
	Events         []events.Event
}

// Run performs one decision. Identity and listing failures are returned as errors
// and nothing is mutated; a missing label on a created issue yields OutcomePartial.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil || cfg.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}

	runID := uuid.New().String()
	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}
	rec := &events.Recorder{}
	log := events.NewLogger(base.With("run_id", runID, "repo", cfg.Repository), rec)

	client := cfg.Tracker
	if cfg.DryRun {
		client = tracker.NewDryRun(client, log)
	}

	result := &Result{
		RunID:          runID,
		ConfiguredMode: cfg.Policy.Mode,
		DryRun:         cfg.DryRun,
	}
	finish := func(outcome Outcome, reason string) (*Result, error) {
		result.Outcome = outcome
		result.Reason = reason
		data := map[string]interface{}{
			"outcome": string(outcome),
			"mode":    result.Mode.String(),
			"dry_run": cfg.DryRun,
		}
		issueNumber := 0
		if result.Issue != nil {
			issueNumber = result.Issue.Number
		}
		log.Emit(ctx, events.EventTypeRunCompleted, events.SeverityInfo, issueNumber,
			fmt.Sprintf("Run completed: %s", reason), data)
		result.Events = rec.Events()
		return result, nil
	}

	log.Emit(ctx, events.EventTypeRunStarted, events.SeverityInfo, 0, "Assignment run started",
		map[string]interface{}{
			"trigger":        string(cfg.Trigger),
			"mode":           cfg.Policy.Mode.String(),
			"label_override": cfg.LabelOverride,
			"dry_run":        cfg.DryRun,
		})

	bot, err := client.BotIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving bot identity: %w", err)
	}
	result.Bot = bot
	log.Emit(ctx, events.EventTypeIdentityResolved, events.SeverityInfo, 0,
		fmt.Sprintf("Resolved bot identity %s", bot.Login),
		map[string]interface{}{"bot": bot.Login, "bot_id": bot.ID})

	resolver := subissues.NewResolver(client, log)
	resolver.FailSafe = cfg.FailSafe
	sel := selection.NewSelector(client, resolver, log, cfg.Concurrency)
	ctrl := refactor.NewController(client, sel, log)
	if cfg.RefactorThreshold > 0 {
		ctrl.Threshold = cfg.RefactorThreshold
	}
	if cfg.RefactorTitle != "" {
		ctrl.TitlePrefix = cfg.RefactorTitle
	}

	mode, err := ctrl.ResolveMode(ctx, cfg.Trigger, cfg.Policy.Mode)
	if err != nil {
		return nil, err
	}
	result.Mode = mode.Mode
	result.ModeReason = mode.Reason
	log.Emit(ctx, events.EventTypeModeResolved, events.SeverityInfo, 0,
		fmt.Sprintf("Effective mode %s: %s", mode.Mode, mode.Reason),
		map[string]interface{}{
			"configured": cfg.Policy.Mode.String(),
			"effective":  mode.Mode.String(),
			"checked":    mode.Checked,
		})

	botIssues, err := client.ListIssues(ctx, tracker.IssueFilter{
		State:    types.StateOpen,
		Assignee: bot.Login,
	})
	if err != nil {
		return nil, fmt.Errorf("listing issues assigned to %s: %w", bot.Login, err)
	}
	guard := selection.ShouldAssignNew(botIssues, mode.Mode, cfg.Policy.Force)
	log.Emit(ctx, events.EventTypeGuardDecision, events.SeverityInfo, 0,
		fmt.Sprintf("Workload guard: %s", guard.Reason),
		map[string]interface{}{
			"proceed":     guard.Proceed,
			"reason":      guard.Reason,
			"bot_issues":  issueNumbers(botIssues),
			"force":       cfg.Policy.Force,
			"effective":   mode.Mode.String(),
			"bot_account": bot.Login,
		})
	if !guard.Proceed {
		return finish(OutcomeGuardRefused, guard.Reason)
	}

	policy := cfg.Policy
	policy.Mode = mode.Mode

	if mode.Mode == types.ModeRefactor {
		out, err := ctrl.Run(ctx, bot, policy)
		if err != nil {
			return nil, err
		}
		result.Issue = out.Issue
		result.Pool = "refactor"
		switch {
		case out.Partial():
			return finish(OutcomePartial, fmt.Sprintf("created refactor issue without label: %v", out.LabelErr))
		case out.Action == refactor.ActionCreated:
			return finish(OutcomeCreated, "created refactor issue")
		default:
			return finish(OutcomeAssigned, "assigned existing refactor issue")
		}
	}

	policy.ExcludeRefactor = true
	picked, err := sel.SelectByPriority(ctx, cfg.LabelOverride, policy)
	if err != nil {
		return nil, err
	}
	if picked == nil {
		log.Emit(ctx, events.EventTypeNoSuitableIssue, events.SeverityInfo, 0,
			"No suitable issue found",
			map[string]interface{}{"pools": priorities.PoolOrder(cfg.LabelOverride, policy.LabelPriority)})
		return finish(OutcomeNoSuitableIssue, "no suitable issue")
	}

	if err := client.AssignIssue(ctx, picked.Issue.ID, bot.ID); err != nil {
		return nil, fmt.Errorf("assigning #%d: %w", picked.Issue.Number, err)
	}
	result.Issue = picked.Issue
	result.Pool = picked.Pool
	log.Emit(ctx, events.EventTypeIssueAssigned, events.SeverityInfo, picked.Issue.Number,
		fmt.Sprintf("Assigned %s to %s", picked.Issue.Ref(), bot.Login),
		map[string]interface{}{
			"bot":  bot.Login,
			"pool": picked.Pool,
			"url":  picked.Issue.URL,
		})
	return finish(OutcomeAssigned, fmt.Sprintf("assigned from %s pool", picked.Pool))
}

// IsIdentityError reports whether the run failed because the bot couldn't be found.
func IsIdentityError(err error) bool {
	return errors.Is(err, tracker.ErrBotNotFound)
}

func issueNumbers(issues []types.Issue) []int {
	out := make([]int, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Number)
	}
	return out
}
