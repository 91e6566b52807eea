// Package selection decides which open issue, if any, the bot should receive.
package selection

import (
	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/types"
)

// ClassifiedIssue holds the boolean facts the skip rules are evaluated against.
type ClassifiedIssue struct {
	Issue           *types.Issue
	IsAssigned      bool
	HasSubIssues    bool // Resolved, not the raw primary count
	IsSubIssue      bool // Informational; never disqualifies
	IsRefactorIssue bool
}

// Classify derives the facts for issue. It does no I/O.
func Classify(issue *types.Issue, resolvedHasSubIssues bool) ClassifiedIssue {
	return ClassifiedIssue{
		Issue:           issue,
		IsAssigned:      len(issue.Assignees) > 0,
		HasSubIssues:    resolvedHasSubIssues,
		IsSubIssue:      issue.ParentTrackingCount > 0,
		IsRefactorIssue: issue.Labels.Has(labels.LabelRefactor),
	}
}

// SkipReason explains why an issue was not selected.
type SkipReason int

const (
	ReasonNone SkipReason = iota
	ReasonAlreadyAssigned
	ReasonHasSubIssues
	ReasonSkipLabel
	ReasonIsRefactorIssue
)

// String returns the log name of the reason
func (r SkipReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonAlreadyAssigned:
		return "already_assigned"
	case ReasonHasSubIssues:
		return "has_sub_issues"
	case ReasonSkipLabel:
		return "skip_label"
	case ReasonIsRefactorIssue:
		return "is_refactor_issue"
	default:
		return "unknown"
	}
}

// SkipResult is the outcome of evaluating one issue.
type SkipResult struct {
	ShouldSkip bool
	Reason     SkipReason
	Label      string // Set for ReasonSkipLabel
}

// Evaluate applies the skip rules in fixed order; the first match wins:
//
//  1. assigned
//  2. has sub-issues, unless parents are allowed
//  3. carries a skip label (reported in policy order)
//  4. refactor issue, when the policy excludes them
func Evaluate(c ClassifiedIssue, policy types.Policy) SkipResult {
	if c.IsAssigned {
		return SkipResult{ShouldSkip: true, Reason: ReasonAlreadyAssigned}
	}
	if c.HasSubIssues && !policy.AllowParentIssues {
		return SkipResult{ShouldSkip: true, Reason: ReasonHasSubIssues}
	}
	if c.Issue != nil {
		if name, ok := c.Issue.Labels.FirstIn(policy.SkipLabels); ok {
			return SkipResult{ShouldSkip: true, Reason: ReasonSkipLabel, Label: name}
		}
	}
	if policy.ExcludeRefactor && c.IsRefactorIssue {
		return SkipResult{ShouldSkip: true, Reason: ReasonIsRefactorIssue}
	}
	return SkipResult{Reason: ReasonNone}
}

// needsResolution reports whether resolving sub-issue existence can change the
// outcome for issue. The primary count is trusted when positive, assigned issues
// are skipped by rule 1 regardless, and allowed parents make the answer moot.
func needsResolution(issue *types.Issue, policy types.Policy) bool {
	return !policy.AllowParentIssues && len(issue.Assignees) == 0 && issue.SubIssueCount == 0
}
