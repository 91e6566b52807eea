package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/assignbot/internal/config"
	"github.com/steveyegge/assignbot/internal/engine"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/tracker/github"
	"github.com/steveyegge/assignbot/internal/tracker/snapshot"
	"github.com/steveyegge/assignbot/internal/types"
)

// runOptions are the flags shared by assign and explain.
type runOptions struct {
	repo              string
	bot               string
	mode              string
	trigger           string
	label             string
	force             bool
	dryRun            bool
	allowParentIssues bool
	skipLabels        []string
	labelPriority     []string
	refactorThreshold int
	refactorTitle     string
	concurrency       int
	failSafe          bool
	snapshotPath      string
	jsonOutput        bool
}

var assignOpts runOptions

func newAssignCmd(o *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign the next suitable issue to the bot",
		Long: `Run one assignment decision.

In auto mode the label pools are searched in priority order and the oldest
eligible issue is assigned. After an issue is closed (--trigger=issue_closed)
the recent closed history is checked and, when no refactor issue appears in it,
a refactor issue is assigned or created instead.

Exit status is non-zero only when the run failed; finding nothing to assign is
a normal outcome.`,
		Example: `  assignbot assign --repo octo/widgets
  assignbot assign --label documentation --dry-run
  assignbot assign --trigger issue_closed --refactor-threshold 6
  assignbot assign --snapshot testdata/widgets.json --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecision(cmd, o, false)
		},
	}
	addRunFlags(cmd, o)
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Decide without mutating the tracker")
	return cmd
}

func init() {
	rootCmd.AddCommand(newAssignCmd(&assignOpts))
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.StringVar(&o.repo, "repo", "", "Repository as owner/name (default: $GITHUB_REPOSITORY)")
	f.StringVar(&o.bot, "bot", "", "Bot login to assign (default: Copilot)")
	f.StringVar(&o.mode, "mode", "", "Run mode: auto or refactor")
	f.StringVar(&o.trigger, "trigger", "", "What started the run: manual, schedule or issue_closed")
	f.StringVar(&o.label, "label", "", "Search only this label pool")
	f.BoolVar(&o.force, "force", false, "Assign even when the bot already has open issues")
	f.BoolVar(&o.allowParentIssues, "allow-parent-issues", false, "Allow issues that track sub-issues")
	f.StringSliceVar(&o.skipLabels, "skip-labels", nil, "Comma-separated labels that exclude an issue")
	f.StringSliceVar(&o.labelPriority, "label-priority", nil, "Comma-separated pool order")
	f.IntVar(&o.refactorThreshold, "refactor-threshold", 0, "Closed issues inspected by the refactor cadence check")
	f.StringVar(&o.refactorTitle, "refactor-title", "", "Title prefix for created refactor issues")
	f.IntVar(&o.concurrency, "concurrency", 0, "Concurrent sub-issue lookups")
	f.BoolVar(&o.failSafe, "fail-safe-has-children", true, "Treat unverifiable issues as having sub-issues")
	f.StringVar(&o.snapshotPath, "snapshot", "", "Read issues from a JSON snapshot instead of GitHub")
	f.BoolVar(&o.jsonOutput, "json", false, "Print the result as JSON")
}

// applyFlags overlays flags the user actually set.
func applyFlags(cmd *cobra.Command, o *runOptions, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string) bool { return f.Changed(name) }

	if set("repo") {
		cfg.Repository = o.repo
	}
	if set("bot") {
		cfg.BotLogin = o.bot
	}
	if set("mode") {
		cfg.Mode = o.mode
	}
	if set("trigger") {
		cfg.Trigger = o.trigger
	}
	if set("label") {
		cfg.Label = o.label
	}
	if set("force") {
		cfg.Force = o.force
	}
	if set("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if set("allow-parent-issues") {
		cfg.AllowParentIssues = o.allowParentIssues
	}
	if set("skip-labels") {
		cfg.SkipLabels = o.skipLabels
	}
	if set("label-priority") {
		cfg.LabelPriority = o.labelPriority
	}
	if set("refactor-threshold") {
		cfg.RefactorThreshold = o.refactorThreshold
	}
	if set("refactor-title") {
		cfg.RefactorTitle = o.refactorTitle
	}
	if set("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if set("fail-safe-has-children") {
		cfg.FailSafeHasChildren = o.failSafe
	}
	if set("log-format") {
		cfg.LogFormat = logFormat
	}
	if set("log-level") {
		cfg.LogLevel = logLevel
	}
}

// loadRunConfig layers defaults, file, environment and flags, then validates.
// A snapshot supplies the repository when none is configured.
func loadRunConfig(cmd *cobra.Command, o *runOptions) (*config.Config, *snapshot.Tracker, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	applyFlags(cmd, o, cfg)

	var snap *snapshot.Tracker
	if o.snapshotPath != "" {
		snap, err = snapshot.Load(o.snapshotPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Repository == "" {
			cfg.Repository = snap.Repository()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, snap, nil
}

func newTracker(ctx context.Context, cfg *config.Config, snap *snapshot.Tracker, log *slog.Logger) (tracker.Client, error) {
	if snap != nil {
		return snap, nil
	}
	owner, repo, err := cfg.RepoParts()
	if err != nil {
		return nil, err
	}
	return github.New(ctx, github.Options{
		Owner:             owner,
		Repo:              repo,
		Token:             cfg.Token,
		BotLogin:          cfg.BotLogin,
		APIURL:            cfg.Transport.APIURL,
		GraphQLURL:        cfg.Transport.GraphQLURL,
		RequestsPerSecond: cfg.Transport.RequestsPerSecond,
		Burst:             cfg.Transport.Burst,
		RetryMaxElapsed:   cfg.Transport.RetryMaxElapsed(),
		Timeout:           cfg.Transport.Timeout(),
		Logger:            log,
	})
}

func engineConfig(cfg *config.Config, client tracker.Client, log *slog.Logger) *engine.Config {
	ec := engine.DefaultConfig()
	ec.Tracker = client
	ec.Repository = cfg.Repository
	ec.Policy = cfg.Policy()
	ec.Trigger = types.Trigger(cfg.Trigger)
	ec.LabelOverride = cfg.Label
	ec.RefactorThreshold = cfg.RefactorThreshold
	ec.RefactorTitle = cfg.RefactorTitle
	ec.DryRun = cfg.DryRun
	ec.Concurrency = cfg.Concurrency
	ec.FailSafe = cfg.FailSafeHasChildren
	ec.Logger = log
	return ec
}

// runDecision runs one decision. explain forces a dry run and prints the trace.
func runDecision(cmd *cobra.Command, o *runOptions, explain bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, snap, err := loadRunConfig(cmd, o)
	if err != nil {
		return err
	}
	if explain {
		cfg.DryRun = true
	}

	log := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	log.Debug("loaded configuration", "config", cfg.String())

	client, err := newTracker(ctx, cfg, snap, log)
	if err != nil {
		return err
	}

	res, err := engine.Run(ctx, engineConfig(cfg, client, log))
	if err != nil {
		if engine.IsIdentityError(err) {
			return fmt.Errorf("%w (is %s enabled for %s?)", err, cfg.BotLogin, cfg.Repository)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if o.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(newResultJSON(res, explain))
	}
	if explain {
		printTrace(out, res.Events)
	}
	printSummary(out, res)
	if snap != nil && !cfg.DryRun {
		printMutations(out, snap.Mutations())
	}
	return nil
}
