package selection

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/assignbot/internal/events"
	"github.com/steveyegge/assignbot/internal/labels"
	"github.com/steveyegge/assignbot/internal/priorities"
	"github.com/steveyegge/assignbot/internal/tracker"
	"github.com/steveyegge/assignbot/internal/types"
)

// FallbackPool names the all-open-issues scan in logs and results.
const FallbackPool = "(no priority label)"

// DefaultConcurrency is the number of sub-issue lookups run at once.
const DefaultConcurrency = 4

// IssueLister is the subset of tracker.Client the selector needs.
type IssueLister interface {
	ListIssues(ctx context.Context, filter tracker.IssueFilter) ([]types.Issue, error)
}

// SubIssueResolver answers whether an issue has children.
type SubIssueResolver interface {
	HasSubIssues(ctx context.Context, issue *types.Issue) bool
}

// Selection is the issue chosen by SelectByPriority and the pool it came from.
type Selection struct {
	Issue *types.Issue
	Pool  string
}

// Selector walks priority pools and returns the first eligible issue.
type Selector struct {
	issues   IssueLister
	resolver SubIssueResolver
	log      *events.Logger
	window   int
	sem      *semaphore.Weighted // Bounds concurrent sub-issue lookups
}

// NewSelector creates a selector. concurrency <= 0 uses DefaultConcurrency.
func NewSelector(issues IssueLister, resolver SubIssueResolver, log *events.Logger, concurrency int) *Selector {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Selector{
		issues:   issues,
		resolver: resolver,
		log:      log,
		window:   concurrency,
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
}

// SelectByPriority searches the label pools in priority order and stops at the
// first pool with an eligible issue. Pools are never merged.
//
// With no override label, a final scan over every open issue that carries none of
// the priority labels runs after the pools are exhausted. Returns nil when nothing
// is eligible. Listing errors are fatal and wrapped with the pool name.
func (s *Selector) SelectByPriority(ctx context.Context, override string, policy types.Policy) (*Selection, error) {
	pools := priorities.PoolOrder(override, policy.LabelPriority)

	// Asking for the refactor pool by name means refactor issues are wanted.
	if len(pools) == 1 && !priorities.UseFallbackScan(override) && labels.New(pools[0]).Has(labels.LabelRefactor) {
		policy = policy.WithoutRefactorExclusion()
	}

	for _, pool := range pools {
		issue, err := s.SelectLabelPool(ctx, pool, policy)
		if err != nil {
			return nil, err
		}
		if issue != nil {
			return &Selection{Issue: issue, Pool: pool}, nil
		}
	}

	if !priorities.UseFallbackScan(override) {
		return nil, nil
	}

	open, err := s.issues.ListIssues(ctx, tracker.IssueFilter{
		State: types.StateOpen,
		Order: tracker.OrderCreatedAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("listing open issues for fallback scan: %w", err)
	}
	remaining := make([]types.Issue, 0, len(open))
	for _, issue := range open {
		if !issue.Labels.HasAny(pools) {
			remaining = append(remaining, issue)
		}
	}
	s.poolStarted(ctx, FallbackPool, len(remaining))
	issue, err := s.SelectFromPool(ctx, remaining, policy)
	if err != nil || issue == nil {
		return nil, err
	}
	return &Selection{Issue: issue, Pool: FallbackPool}, nil
}

// SelectLabelPool lists the open issues carrying label, oldest first, and returns
// the first eligible one.
func (s *Selector) SelectLabelPool(ctx context.Context, label string, policy types.Policy) (*types.Issue, error) {
	issues, err := s.issues.ListIssues(ctx, tracker.IssueFilter{
		State:  types.StateOpen,
		Labels: []string{label},
		Order:  tracker.OrderCreatedAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("listing %q pool: %w", label, err)
	}
	s.poolStarted(ctx, label, len(issues))
	return s.SelectFromPool(ctx, issues, policy)
}

// SelectFromPool returns the first issue in pool order that the skip rules allow,
// or nil if none qualifies.
//
// Sub-issue lookups run concurrently in windows of the configured size. A window
// is evaluated in pool order only after all of its lookups finish, and the next
// window starts only if nothing in the current one was eligible. Issues whose
// outcome can't depend on the lookup are decided without one. The only error is
// context cancellation.
func (s *Selector) SelectFromPool(ctx context.Context, pool []types.Issue, policy types.Policy) (*types.Issue, error) {
	i := 0
	for i < len(pool) {
		issue := &pool[i]
		if !needsResolution(issue, policy) {
			if s.decide(ctx, issue, issue.SubIssueCount > 0, policy) {
				return issue, nil
			}
			i++
			continue
		}

		end := i + s.window
		if end > len(pool) {
			end = len(pool)
		}
		resolved, err := s.resolveWindow(ctx, pool[i:end], policy)
		if err != nil {
			return nil, err
		}
		for j := i; j < end; j++ {
			if s.decide(ctx, &pool[j], resolved[j-i], policy) {
				return &pool[j], nil
			}
		}
		i = end
	}
	return nil, nil
}

// resolveWindow resolves sub-issue existence for every issue in batch that needs
// it. Results are indexed like batch.
func (s *Selector) resolveWindow(ctx context.Context, batch []types.Issue, policy types.Policy) ([]bool, error) {
	results := make([]bool, len(batch))
	var wg sync.WaitGroup
	for idx := range batch {
		issue := &batch[idx]
		if !needsResolution(issue, policy) {
			results[idx] = issue.SubIssueCount > 0
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.sem.Release(1)
			results[idx] = s.resolver.HasSubIssues(ctx, issue)
		}()
	}
	wg.Wait()
	return results, nil
}

// decide classifies and evaluates one issue, logging the outcome. Returns true if
// the issue is eligible.
func (s *Selector) decide(ctx context.Context, issue *types.Issue, hasSubIssues bool, policy types.Policy) bool {
	c := Classify(issue, hasSubIssues)
	res := Evaluate(c, policy)
	if res.ShouldSkip {
		data := map[string]interface{}{
			"reason":       res.Reason.String(),
			"title":        issue.Title,
			"is_sub_issue": c.IsSubIssue,
		}
		if res.Label != "" {
			data["label"] = res.Label
		}
		s.log.Emit(ctx, events.EventTypeIssueSkipped, events.SeverityInfo, issue.Number,
			fmt.Sprintf("Skipping %s: %s", issue.Ref(), res.Reason), data)
		return false
	}
	s.log.Emit(ctx, events.EventTypeIssueSelected, events.SeverityInfo, issue.Number,
		fmt.Sprintf("Selected %s", issue.Ref()),
		map[string]interface{}{
			"title":        issue.Title,
			"url":          issue.URL,
			"is_sub_issue": c.IsSubIssue,
		})
	return true
}

func (s *Selector) poolStarted(ctx context.Context, pool string, size int) {
	s.log.Emit(ctx, events.EventTypePoolStarted, events.SeverityInfo, 0,
		fmt.Sprintf("Searching pool %s", pool),
		map[string]interface{}{
			"pool":   pool,
			"issues": size,
		})
}
