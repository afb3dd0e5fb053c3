package app

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/hylla/metricops/internal/domain"
)

// maxRecomputeRetries bounds how often a derived-field refresh re-reads the
// current version after losing a compare-and-append race.
const maxRecomputeRetries = 5

// RecomputeBlockers refreshes the blocker count of a work item from its
// current non-deleted outgoing edges. Each call appends a version row.
func (s *Service) RecomputeBlockers(ctx context.Context, workItemID string) (domain.WorkItem, error) {
	unlock := s.locks.Lock(workItemID)
	defer unlock()
	return s.recomputeBlockers(ctx, workItemID)
}

// RecomputeNeedsApproval refreshes the needs-approval flag of a work item
// from the current version of each of its approvals.
func (s *Service) RecomputeNeedsApproval(ctx context.Context, workItemID string) (domain.WorkItem, error) {
	unlock := s.locks.Lock(workItemID)
	defer unlock()
	return s.recomputeNeedsApproval(ctx, workItemID)
}

// Recompute refreshes both derived fields of a work item on behalf of actor,
// repairing a version left stale by an interrupted writer.
func (s *Service) Recompute(ctx context.Context, workItemID string, actor domain.Actor) (domain.WorkItem, error) {
	if _, err := authorizeMutation(actor); err != nil {
		return domain.WorkItem{}, err
	}
	unlock := s.locks.Lock(workItemID)
	defer unlock()
	if _, err := s.recomputeBlockers(ctx, workItemID); err != nil {
		return domain.WorkItem{}, err
	}
	return s.recomputeNeedsApproval(ctx, workItemID)
}

// recomputeBlockers expects the caller to hold the work item lock.
func (s *Service) recomputeBlockers(ctx context.Context, workItemID string) (domain.WorkItem, error) {
	return s.refreshDerived(ctx, workItemID, func(next *domain.WorkItem) error {
		edges, err := s.log.ListDependencies(ctx, workItemID)
		if err != nil {
			return err
		}
		next.SetBlockerCount(domain.CountActiveBlockers(workItemID, edges))
		return nil
	})
}

// recomputeNeedsApproval expects the caller to hold the work item lock.
func (s *Service) recomputeNeedsApproval(ctx context.Context, workItemID string) (domain.WorkItem, error) {
	return s.refreshDerived(ctx, workItemID, func(next *domain.WorkItem) error {
		approvals, err := s.log.ListApprovals(ctx, workItemID)
		if err != nil {
			return err
		}
		next.SetNeedsApproval(domain.CountPendingApprovals(approvals) > 0)
		return nil
	})
}

// refreshDerived appends a new version whose derived field is set by apply.
// The refresh is idempotent, so an ErrConflict re-reads the current version
// and its inputs and tries again; any other error is returned as is.
func (s *Service) refreshDerived(ctx context.Context, workItemID string, apply func(*domain.WorkItem) error) (domain.WorkItem, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxRecomputeRetries), ctx)
	return backoff.RetryWithData(func() (domain.WorkItem, error) {
		current, err := s.log.CurrentWorkItem(ctx, workItemID)
		if err != nil {
			return domain.WorkItem{}, backoff.Permanent(err)
		}
		next := current.Next(s.clock())
		if err := apply(&next); err != nil {
			return domain.WorkItem{}, backoff.Permanent(err)
		}
		stored, err := s.log.AppendWorkItem(ctx, next, current.Seq)
		if err != nil && !errors.Is(err, ErrConflict) {
			return domain.WorkItem{}, backoff.Permanent(err)
		}
		return stored, err
	}, policy)
}
