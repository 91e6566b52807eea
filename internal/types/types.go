package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/assignbot/internal/labels"
)

// Issue is the per-run mirror of a tracker issue. It is fetched fresh every run
// and never persisted.
type Issue struct {
	ID                  string     `json:"id"` // Opaque tracker identifier (GraphQL node ID)
	Number              int        `json:"number"`
	Title               string     `json:"title"`
	URL                 string     `json:"url"`
	Body                string     `json:"body"`
	State               State      `json:"state"`
	Assignees           Assignees  `json:"assignees"`
	Labels              labels.Set `json:"labels"`
	SubIssueCount       int        `json:"sub_issue_count"`       // Children this issue tracks; may under-report
	ParentTrackingCount int        `json:"parent_tracking_count"` // Task-list trackers, or 1 for a native parent alone; informational only
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
}

// Ref renders "#123 (title)" for log lines.
func (i *Issue) Ref() string {
	return fmt.Sprintf("#%d (%s)", i.Number, i.Title)
}

// HasBody reports whether the body carries any text worth inspecting.
func (i *Issue) HasBody() bool {
	return strings.TrimSpace(i.Body) != ""
}

// State is the open/closed state of an issue
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// IsValid checks if the state value is valid
func (s State) IsValid() bool {
	switch s {
	case StateOpen, StateClosed:
		return true
	}
	return false
}

// Assignees is the set of logins assigned to an issue.
// It decodes from the same shapes as labels.Set, keyed by "login".
type Assignees []string

// UnmarshalJSON accepts {"nodes":[{"login":..}]}, [{"login":..}] and ["login"].
func (a *Assignees) UnmarshalJSON(data []byte) error {
	*a = Assignees(labels.DecodeNames(data, "login"))
	return nil
}

// MarshalJSON writes the flat form.
func (a Assignees) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

// Contains reports whether login is assigned (case-insensitive).
func (a Assignees) Contains(login string) bool {
	for _, l := range a {
		if strings.EqualFold(l, login) {
			return true
		}
	}
	return false
}

// IssueRef points at an issue, possibly in another repository.
type IssueRef struct {
	Owner  string `json:"owner,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Number int    `json:"number"`
}

// Label is a tracker label with its identifier.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Identity is the bot account that receives assignments.
type Identity struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

// Mode is the run mode of the assignment engine
type Mode int

const (
	// ModeAuto searches the ordinary priority pools
	ModeAuto Mode = iota
	// ModeRefactor assigns or creates a maintenance issue
	ModeRefactor
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "AUTO"
	case ModeRefactor:
		return "REFACTOR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(m))
	}
}

// ParseMode parses "auto" or "refactor" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "refactor":
		return ModeRefactor, nil
	}
	return ModeAuto, fmt.Errorf("invalid mode %q (want auto or refactor)", s)
}

// Trigger is what started the run
type Trigger string

const (
	TriggerManual      Trigger = "manual"
	TriggerSchedule    Trigger = "schedule"
	TriggerIssueClosed Trigger = "issue_closed"
)

// IsValid checks if the trigger value is valid
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerManual, TriggerSchedule, TriggerIssueClosed:
		return true
	}
	return false
}

// Policy is the immutable per-run configuration of the decision rules.
type Policy struct {
	AllowParentIssues bool
	SkipLabels        []string // Ordered; the first match in this order is reported
	LabelPriority     []string
	Force             bool
	Mode              Mode
	// ExcludeRefactor skips refactor-labeled issues. Set on the ordinary path,
	// cleared when searching for refactor work itself.
	ExcludeRefactor bool
}

// WithoutRefactorExclusion returns a copy of p that allows refactor issues.
func (p Policy) WithoutRefactorExclusion() Policy {
	p.ExcludeRefactor = false
	return p
}
