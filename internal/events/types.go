package events

import (
	"context"
	"log/slog"
	"time"
)

// EventType represents a decision point reached during a run.
type EventType string

const (
	// Run lifecycle
	// EventTypeRunStarted indicates a run began
	EventTypeRunStarted EventType = "run_started"
	// EventTypeRunCompleted indicates a run finished with an outcome
	EventTypeRunCompleted EventType = "run_completed"
	// EventTypeIdentityResolved indicates the bot account was found
	EventTypeIdentityResolved EventType = "identity_resolved"

	// Mode controller
	// EventTypeModeResolved indicates the effective mode for the run was decided
	EventTypeModeResolved EventType = "mode_resolved"

	// Workload guard
	// EventTypeGuardDecision indicates the workload guard allowed or refused the run
	EventTypeGuardDecision EventType = "guard_decision"

	// Selection
	// EventTypePoolStarted indicates a priority pool is being scanned
	EventTypePoolStarted EventType = "pool_started"
	// EventTypeIssueSkipped indicates an issue was rejected by the skip rules
	EventTypeIssueSkipped EventType = "issue_skipped"
	// EventTypeIssueSelected indicates the first eligible issue was found
	EventTypeIssueSelected EventType = "issue_selected"
	// EventTypeNoSuitableIssue indicates every pool was exhausted
	EventTypeNoSuitableIssue EventType = "no_suitable_issue"

	// Sub-issue resolution
	// EventTypeSubIssueFallback indicates the resolver fell back past the primary count
	EventTypeSubIssueFallback EventType = "sub_issue_fallback"

	// Mutations
	// EventTypeIssueAssigned indicates the bot was assigned an issue
	EventTypeIssueAssigned EventType = "issue_assigned"
	// EventTypeIssueCreated indicates a refactor issue was created
	EventTypeIssueCreated EventType = "issue_created"
	// EventTypeLabelAttached indicates a label was attached to an issue
	EventTypeLabelAttached EventType = "label_attached"
	// EventTypeLabelAttachFailed indicates a label could not be attached (non-fatal)
	EventTypeLabelAttachFailed EventType = "label_attach_failed"
	// EventTypeDryRunAction indicates a mutation was suppressed by dry-run mode
	EventTypeDryRunAction EventType = "dry_run_action"
)

// EventSeverity represents the severity level of an event
type EventSeverity string

const (
	// SeverityDebug is for high-volume tracing (per-issue resolution steps)
	SeverityDebug EventSeverity = "debug"
	// SeverityInfo is for informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning is for warnings that don't stop the run
	SeverityWarning EventSeverity = "warning"
	// SeverityError is for failures
	SeverityError EventSeverity = "error"
)

// Level maps a severity onto slog levels.
func (s EventSeverity) Level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Event is one structured decision record.
type Event struct {
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// IssueNumber is the issue the event is about (0 for run-level events)
	IssueNumber int `json:"issue_number,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data
	Data map[string]interface{} `json:"data,omitempty"`
}

// Sink receives events. The engine records every event it emits so the CLI can
// render a trace.
type Sink interface {
	Record(Event)
}

// Logger writes events as structured log lines and forwards them to an optional sink.
// A nil *Logger discards everything.
type Logger struct {
	log  *slog.Logger
	sink Sink
}

// NewLogger creates an event logger on top of l. A nil l uses slog.Default().
// A nil sink, including a nil *Recorder, records nothing.
func NewLogger(l *slog.Logger, sink Sink) *Logger {
	if l == nil {
		l = slog.Default()
	}
	if r, ok := sink.(*Recorder); ok && r == nil {
		sink = nil
	}
	return &Logger{log: l, sink: sink}
}

// With returns a logger that adds attrs to every line.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{log: l.log.With(args...), sink: l.sink}
}

// Slog exposes the underlying structured logger.
func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return slog.New(discardHandler{})
	}
	return l.log
}

// Emit logs an event.
func (l *Logger) Emit(ctx context.Context, typ EventType, severity EventSeverity, issueNumber int, message string, data map[string]interface{}) {
	if l == nil {
		return
	}
	ev := Event{
		Type:        typ,
		Timestamp:   time.Now(),
		IssueNumber: issueNumber,
		Severity:    severity,
		Message:     message,
		Data:        data,
	}
	if l.sink != nil {
		l.sink.Record(ev)
	}

	level := severity.Level()
	if !l.log.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(data)+2)
	attrs = append(attrs, slog.String("event", string(typ)))
	if issueNumber > 0 {
		attrs = append(attrs, slog.Int("issue", issueNumber))
	}
	for _, k := range sortedKeys(data) {
		attrs = append(attrs, slog.Any(k, data[k]))
	}
	l.log.LogAttrs(ctx, level, message, attrs...)
}
