package selection

import (
	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/types"
)

// Workload guard reasons.
const (
	GuardNoAssignedIssues = "no assigned issues"
	GuardForce            = "force flag set"
	GuardBusy             = "already has assigned issues and force is false"
	GuardHasRefactorIssue = "already has a refactor issue"
	GuardBusySkipRefactor = "working on other issues, skip refactor creation"
	guardUnknownMode      = "unknown mode"
)

// GuardDecision is the workload guard's answer.
type GuardDecision struct {
	Proceed bool
	Reason  string
}

// ShouldAssignNew decides whether the bot gets a new assignment at all, given the
// open issues it already holds. Refactor work only happens when the bot is idle;
// force only applies to auto mode.
func ShouldAssignNew(botIssues []types.Issue, mode types.Mode, force bool) GuardDecision {
	if len(botIssues) == 0 {
		return GuardDecision{Proceed: true, Reason: GuardNoAssignedIssues}
	}

	switch mode {
	case types.ModeAuto:
		if force {
			return GuardDecision{Proceed: true, Reason: GuardForce}
		}
		return GuardDecision{Reason: GuardBusy}
	case types.ModeRefactor:
		for _, issue := range botIssues {
			if issue.Labels.Has(labels.LabelRefactor) {
				return GuardDecision{Reason: GuardHasRefactorIssue}
			}
		}
		return GuardDecision{Reason: GuardBusySkipRefactor}
	default:
		return GuardDecision{Reason: guardUnknownMode}
	}
}
