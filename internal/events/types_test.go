package events

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level}))
}

func TestEmitWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	rec := &Recorder{}
	l := NewLogger(newJSONLogger(&buf, slog.LevelInfo), rec).With("run_id", "r-1")

	l.Emit(context.Background(), EventTypeIssueSkipped, SeverityInfo, 115, "Skipping issue",
		map[string]interface{}{"reason": "already_assigned"})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "issue_skipped", line["event"])
	assert.Equal(t, float64(115), line["issue"])
	assert.Equal(t, "already_assigned", line["reason"])
	assert.Equal(t, "r-1", line["run_id"])
	assert.Equal(t, "Skipping issue", line["msg"])

	got := rec.OfType(EventTypeIssueSkipped)
	require.Len(t, got, 1)
	assert.Equal(t, 115, got[0].IssueNumber)
}

func TestEmitBelowLevelStillRecords(t *testing.T) {
	var buf bytes.Buffer
	rec := &Recorder{}
	l := NewLogger(newJSONLogger(&buf, slog.LevelInfo), rec)

	l.Emit(context.Background(), EventTypeSubIssueFallback, SeverityDebug, 79, "fallback", nil)

	assert.Empty(t, buf.String(), "debug events are filtered by the handler")
	assert.Len(t, rec.Events(), 1, "the trace keeps every event")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Emit(context.Background(), EventTypeRunStarted, SeverityInfo, 0, "start", nil)
	assert.Nil(t, l.With("k", "v"))
	assert.NotNil(t, l.Slog())
}

func TestNilRecorderSinkIsSafe(t *testing.T) {
	var buf bytes.Buffer
	var rec *Recorder
	l := NewLogger(newJSONLogger(&buf, slog.LevelInfo), rec)

	assert.NotPanics(t, func() {
		l.Emit(context.Background(), EventTypeIssueSkipped, SeverityInfo, 79, "Skipping issue", nil)
	})
	assert.Contains(t, buf.String(), "issue_skipped", "the log line is still written")
	assert.NotPanics(t, func() { rec.Record(Event{Type: EventTypeRunStarted}) })
}

func TestSeverityLevel(t *testing.T) {
	tests := []struct {
		severity EventSeverity
		want     slog.Level
	}{
		{SeverityDebug, slog.LevelDebug},
		{SeverityInfo, slog.LevelInfo},
		{SeverityWarning, slog.LevelWarn},
		{SeverityError, slog.LevelError},
		{EventSeverity("bogus"), slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.severity.Level())
		})
	}
}
