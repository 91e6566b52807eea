package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeString(t *testing.T) {
	tests := []struct {
		mode     Mode
		expected string
	}{
		{ModeAuto, "AUTO"},
		{ModeRefactor, "REFACTOR"},
		{Mode(999), "UNKNOWN(999)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.mode.String(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Refactor")
	require.NoError(t, err)
	assert.Equal(t, ModeRefactor, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("turbo")
	assert.Error(t, err)
}

func TestTriggerIsValid(t *testing.T) {
	assert.True(t, TriggerIssueClosed.IsValid())
	assert.True(t, TriggerSchedule.IsValid())
	assert.False(t, Trigger("push").IsValid())
}

func TestIssueDecodesNestedAndFlatShapes(t *testing.T) {
	nested := `{
		"id": "I_1", "number": 79, "title": "Parent",
		"labels": {"nodes": [{"name": "bug"}]},
		"assignees": {"nodes": [{"login": "Copilot"}]},
		"sub_issue_count": 4
	}`
	flat := `{
		"id": "I_2", "number": 114, "title": "Plain",
		"labels": ["documentation"],
		"assignees": []
	}`

	var a, b Issue
	require.NoError(t, json.Unmarshal([]byte(nested), &a))
	require.NoError(t, json.Unmarshal([]byte(flat), &b))

	assert.True(t, a.Labels.Has("bug"))
	assert.True(t, a.Assignees.Contains("copilot"))
	assert.Equal(t, 4, a.SubIssueCount)

	assert.True(t, b.Labels.Has("documentation"))
	assert.Empty(t, b.Assignees)
	assert.Equal(t, 0, b.SubIssueCount)
}

func TestIssueHasBody(t *testing.T) {
	assert.False(t, (&Issue{Body: "  \n"}).HasBody())
	assert.True(t, (&Issue{Body: "- [ ] #1"}).HasBody())
}

func TestPolicyWithoutRefactorExclusion(t *testing.T) {
	p := Policy{ExcludeRefactor: true, SkipLabels: []string{"wontfix"}}
	q := p.WithoutRefactorExclusion()
	assert.False(t, q.ExcludeRefactor)
	assert.True(t, p.ExcludeRefactor, "original policy must not change")
	assert.Equal(t, p.SkipLabels, q.SkipLabels)
}
