package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/assignbot/internal/engine"
	"github.com/steveyegge/assignbot/internal/events"
	"github.com/steveyegge/assignbot/internal/tracker/snapshot"
)

// printSummary writes the outcome of a run.
func printSummary(w io.Writer, res *engine.Result) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	title := "=== Assignment ==="
	if res.DryRun {
		title = "=== Assignment (dry run) ==="
	}
	fmt.Fprintf(w, "\n%s\n", cyan(title))

	icon, outcome := "•", string(res.Outcome)
	switch res.Outcome {
	case engine.OutcomeAssigned, engine.OutcomeCreated:
		icon, outcome = green("✓"), green(outcome)
	case engine.OutcomePartial:
		icon, outcome = yellow("⚠"), yellow(outcome)
	case engine.OutcomeNoSuitableIssue, engine.OutcomeGuardRefused:
		icon, outcome = gray("○"), gray(outcome)
	}
	fmt.Fprintf(w, "  %s %s: %s\n", icon, outcome, res.Reason)

	mode := res.Mode.String()
	if res.Mode != res.ConfiguredMode {
		mode = fmt.Sprintf("%s (configured %s)", res.Mode, res.ConfiguredMode)
	}
	fmt.Fprintf(w, "    Mode:  %s\n", mode)
	if res.ModeReason != "" {
		fmt.Fprintf(w, "           %s\n", gray(res.ModeReason))
	}
	if res.Bot != nil {
		fmt.Fprintf(w, "    Bot:   %s\n", res.Bot.Login)
	}
	if res.Issue != nil {
		fmt.Fprintf(w, "    Issue: #%d %s\n", res.Issue.Number, res.Issue.Title)
		if res.Issue.URL != "" {
			fmt.Fprintf(w, "           %s\n", gray(res.Issue.URL))
		}
	}
	if res.Pool != "" {
		fmt.Fprintf(w, "    Pool:  %s\n", res.Pool)
	}
	fmt.Fprintf(w, "    Run:   %s\n", gray(res.RunID))
	fmt.Fprintln(w)
}

// printTrace writes the decision events in order, one line each, with the key data
// fields on a second line.
func printTrace(w io.Writer, evs []events.Event) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(w, "\n%s\n", yellow("Decision trace:"))

	for i := range evs {
		ev := &evs[i]
		if ev.Type == events.EventTypeRunStarted || ev.Type == events.EventTypeRunCompleted {
			continue
		}
		issue := ""
		if ev.IssueNumber > 0 {
			issue = color.New(color.FgGreen).Sprintf("#%d ", ev.IssueNumber)
		}
		fmt.Fprintf(w, "  %s %s%s: %s\n",
			eventIcon(ev),
			issue,
			color.New(color.FgMagenta).Sprint(ev.Type),
			severityColor(ev.Severity).Sprint(ev.Message),
		)
		if meta := eventMetadata(ev); meta != "" {
			fmt.Fprintf(w, "      %s\n", color.New(color.FgHiBlack).Sprint(meta))
		}
	}
}

func printMutations(w io.Writer, muts []snapshot.Mutation) {
	if len(muts) == 0 {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(w, "%s\n", yellow("Snapshot mutations (not persisted):"))
	for _, m := range muts {
		fmt.Fprintf(w, "  %s #%d %s\n", m.Kind, m.Number, m.Value)
	}
	fmt.Fprintln(w)
}

func eventIcon(ev *events.Event) string {
	switch ev.Type {
	case events.EventTypeIssueSelected, events.EventTypeIssueAssigned, events.EventTypeIssueCreated:
		return "✓"
	case events.EventTypeIssueSkipped:
		return "⏭"
	case events.EventTypePoolStarted:
		return "▶"
	case events.EventTypeDryRunAction:
		return "☐"
	}
	switch ev.Severity {
	case events.SeverityWarning:
		return "⚠"
	case events.SeverityError:
		return "✗"
	}
	return "•"
}

func severityColor(s events.EventSeverity) *color.Color {
	switch s {
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	case events.SeverityDebug:
		return color.New(color.FgHiBlack)
	}
	return color.New(color.Reset)
}

// eventMetadata renders the data fields worth showing for each event type.
func eventMetadata(ev *events.Event) string {
	var keys []string
	switch ev.Type {
	case events.EventTypeIssueSkipped:
		keys = []string{"reason", "label", "title"}
	case events.EventTypeIssueSelected:
		keys = []string{"pool", "title"}
	case events.EventTypeSubIssueFallback:
		keys = []string{"source", "error"}
	case events.EventTypeModeResolved:
		keys = []string{"configured", "effective", "checked"}
	case events.EventTypeGuardDecision:
		keys = []string{"proceed", "bot_issues", "force"}
	case events.EventTypeDryRunAction:
		keys = []string{"action", "title"}
	default:
		return ""
	}

	var parts []string
	for _, k := range keys {
		if v, ok := ev.Data[k]; ok && v != nil && fmt.Sprint(v) != "" {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " | ")
}

// resultJSON is the --json rendering of a run.
type resultJSON struct {
	RunID          string         `json:"run_id"`
	Outcome        string         `json:"outcome"`
	Reason         string         `json:"reason"`
	ConfiguredMode string         `json:"configured_mode"`
	Mode           string         `json:"mode"`
	ModeReason     string         `json:"mode_reason,omitempty"`
	Bot            string         `json:"bot,omitempty"`
	Issue          *issueJSON     `json:"issue,omitempty"`
	Pool           string         `json:"pool,omitempty"`
	DryRun         bool           `json:"dry_run"`
	Events         []events.Event `json:"events,omitempty"`
	Counts         map[string]int `json:"event_counts,omitempty"`
}

type issueJSON struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
}

func newResultJSON(res *engine.Result, withEvents bool) resultJSON {
	out := resultJSON{
		RunID:          res.RunID,
		Outcome:        string(res.Outcome),
		Reason:         res.Reason,
		ConfiguredMode: res.ConfiguredMode.String(),
		Mode:           res.Mode.String(),
		ModeReason:     res.ModeReason,
		Pool:           res.Pool,
		DryRun:         res.DryRun,
	}
	if res.Bot != nil {
		out.Bot = res.Bot.Login
	}
	if res.Issue != nil {
		out.Issue = &issueJSON{Number: res.Issue.Number, Title: res.Issue.Title, URL: res.Issue.URL}
	}
	if withEvents {
		out.Events = res.Events
	}
	out.Counts = eventCounts(res.Events)
	return out
}

func eventCounts(evs []events.Event) map[string]int {
	if len(evs) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, ev := range evs {
		counts[string(ev.Type)]++
	}
	return counts
}
