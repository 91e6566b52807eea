// Package subissues decides whether an issue has children.
//
// The primary count reported alongside an issue can be zero even when children
// exist, so a zero is treated as unconfirmed. The resolver walks a fallback chain of
// decreasing confidence and stops at the first conclusive answer:
//
//  1. primary count > 0          -> has children (trusted, no further calls)
//  2. direct-children query >= 1 -> has children; an empty successful answer is conclusive
//  3. query failed, body present -> has children iff the body's task list references issues
//  4. query failed, no body      -> FailSafe (default: has children)
package subissues

import (
	"context"

	"github.com/steveyegge/assignbot/internal/events"
	"github.com/steveyegge/assignbot/internal/types"
)

// Source names the step of the chain that produced an answer.
type Source string

const (
	SourcePrimary  Source = "primary_count"
	SourceChildren Source = "children_query"
	SourceBody     Source = "body_task_list"
	SourceFailSafe Source = "fail_safe"
)

// ChildLister is the subset of tracker.Client the resolver needs.
type ChildLister interface {
	ListDirectChildren(ctx context.Context, number, limit int) ([]types.IssueRef, error)
}

// Resolution is the outcome of one resolver call.
type Resolution struct {
	HasChildren bool
	Source      Source
	// QueryErr is the absorbed error from the children query, if any
	QueryErr error
}

// Resolver resolves sub-issue existence. It holds no per-issue state; every call
// re-checks the tracker.
type Resolver struct {
	children ChildLister
	log      *events.Logger

	// FailSafe is the answer when nothing could be verified. true keeps unverifiable
	// parents away from the bot at the cost of occasionally skipping a plain issue.
	FailSafe bool
}

// NewResolver creates a resolver with the fail-safe default enabled.
func NewResolver(children ChildLister, log *events.Logger) *Resolver {
	return &Resolver{children: children, log: log, FailSafe: true}
}

// HasSubIssues is Resolve reduced to its boolean answer.
func (r *Resolver) HasSubIssues(ctx context.Context, issue *types.Issue) bool {
	return r.Resolve(ctx, issue).HasChildren
}

// Resolve runs the fallback chain for one issue. It never returns an error:
// children-query failures are absorbed into the later steps.
func (r *Resolver) Resolve(ctx context.Context, issue *types.Issue) Resolution {
	if issue.SubIssueCount > 0 {
		return Resolution{HasChildren: true, Source: SourcePrimary}
	}

	refs, err := r.children.ListDirectChildren(ctx, issue.Number, 1)
	if err == nil {
		res := Resolution{HasChildren: len(refs) > 0, Source: SourceChildren}
		if res.HasChildren {
			r.log.Emit(ctx, events.EventTypeSubIssueFallback, events.SeverityInfo, issue.Number,
				"Primary count reported no sub-issues but the children query found some",
				map[string]interface{}{"source": string(res.Source)})
		}
		return res
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		r.log.Emit(ctx, events.EventTypeSubIssueFallback, events.SeverityWarning, issue.Number,
			"Children query canceled, using fail-safe answer",
			map[string]interface{}{
				"source":       string(SourceFailSafe),
				"error":        err.Error(),
				"has_children": r.FailSafe,
			})
		return Resolution{HasChildren: r.FailSafe, Source: SourceFailSafe, QueryErr: err}
	}

	if issue.HasBody() {
		found := HasTaskListReferences(issue.Body)
		r.log.Emit(ctx, events.EventTypeSubIssueFallback, events.SeverityWarning, issue.Number,
			"Children query failed, inspected issue body for task-list references",
			map[string]interface{}{
				"source":      string(SourceBody),
				"error":       err.Error(),
				"has_tracked": found,
			})
		return Resolution{HasChildren: found, Source: SourceBody, QueryErr: err}
	}

	r.log.Emit(ctx, events.EventTypeSubIssueFallback, events.SeverityWarning, issue.Number,
		"Children query failed and issue has no body, using fail-safe answer",
		map[string]interface{}{
			"source":       string(SourceFailSafe),
			"error":        err.Error(),
			"has_children": r.FailSafe,
		})
	return Resolution{HasChildren: r.FailSafe, Source: SourceFailSafe, QueryErr: err}
}
