// Package memlog implements the record log as in-process append-only arenas.
package memlog

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// Log keeps every appended version in memory. Each stream is an arena of
// rows plus an index from id to the arena position of its current version.
// One global counter assigns Seq across all streams.
type Log struct {
	mu  sync.RWMutex
	seq int64

	workItems   []domain.WorkItem
	workCurrent map[string]int
	workHistory map[string][]int

	deps       []domain.DependencyEdge
	depCurrent map[string]int

	approvals       []domain.Approval
	approvalCurrent map[string]int

	events       []domain.Event
	eventsByItem map[string][]int

	comments  []domain.Comment
	artifacts []domain.Artifact
}

var _ app.RecordLog = (*Log)(nil)

// New constructs an empty log.
func New() *Log {
	return &Log{
		workCurrent:     map[string]int{},
		workHistory:     map[string][]int{},
		depCurrent:      map[string]int{},
		approvalCurrent: map[string]int{},
		eventsByItem:    map[string][]int{},
	}
}

// nextSeq expects the write lock to be held.
func (l *Log) nextSeq() int64 {
	l.seq++
	return l.seq
}

// AppendWorkItem appends a work item version when baseSeq matches the current one.
func (l *Log) AppendWorkItem(ctx context.Context, item domain.WorkItem, baseSeq int64) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var currentSeq int64
	if idx, ok := l.workCurrent[item.ID]; ok {
		currentSeq = l.workItems[idx].Seq
	}
	if currentSeq != baseSeq {
		return domain.WorkItem{}, app.ErrConflict
	}
	row := cloneWorkItem(item)
	row.Seq = l.nextSeq()
	l.workItems = append(l.workItems, row)
	idx := len(l.workItems) - 1
	l.workCurrent[row.ID] = idx
	l.workHistory[row.ID] = append(l.workHistory[row.ID], idx)
	return cloneWorkItem(row), nil
}

// CurrentWorkItem returns the highest-seq version of a work item.
func (l *Log) CurrentWorkItem(ctx context.Context, id string) (domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.WorkItem{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.workCurrent[id]
	if !ok {
		return domain.WorkItem{}, app.ErrNotFound
	}
	return cloneWorkItem(l.workItems[idx]), nil
}

// WorkItemVersions returns every version of a work item in append order.
func (l *Log) WorkItemVersions(ctx context.Context, id string) ([]domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	history, ok := l.workHistory[id]
	if !ok {
		return nil, app.ErrNotFound
	}
	out := make([]domain.WorkItem, 0, len(history))
	for _, idx := range history {
		out = append(out, cloneWorkItem(l.workItems[idx]))
	}
	return out, nil
}

// ListWorkItems returns current work items matching filter, newest update first.
func (l *Log) ListWorkItems(ctx context.Context, filter app.WorkItemFilter) ([]domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := make([]domain.WorkItem, 0)
	for _, idx := range l.workCurrent {
		item := l.workItems[idx]
		if matchesFilter(item, filter) {
			out = append(out, cloneWorkItem(item))
		}
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.WorkItem) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Seq, a.Seq)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AppendDependency appends a dependency edge version.
func (l *Log) AppendDependency(ctx context.Context, edge domain.DependencyEdge) (domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return domain.DependencyEdge{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	edge.Seq = l.nextSeq()
	l.deps = append(l.deps, edge)
	l.depCurrent[edge.ID] = len(l.deps) - 1
	return edge, nil
}

// CurrentDependency returns the highest-seq version of an edge.
func (l *Log) CurrentDependency(ctx context.Context, id string) (domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return domain.DependencyEdge{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.depCurrent[id]
	if !ok {
		return domain.DependencyEdge{}, app.ErrNotFound
	}
	return l.deps[idx], nil
}

// ListDependencies returns current edges touching workItemID in append order.
func (l *Log) ListDependencies(ctx context.Context, workItemID string) ([]domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := make([]domain.DependencyEdge, 0)
	for _, idx := range l.depCurrent {
		edge := l.deps[idx]
		if edge.WorkItemID == workItemID || edge.DependsOnID == workItemID {
			out = append(out, edge)
		}
	}
	l.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.DependencyEdge) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

// AppendApproval appends an approval version.
func (l *Log) AppendApproval(ctx context.Context, approval domain.Approval) (domain.Approval, error) {
	if err := ctx.Err(); err != nil {
		return domain.Approval{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	approval = cloneApproval(approval)
	approval.Seq = l.nextSeq()
	l.approvals = append(l.approvals, approval)
	l.approvalCurrent[approval.ID] = len(l.approvals) - 1
	return cloneApproval(approval), nil
}

// CurrentApproval returns the highest-seq version of an approval.
func (l *Log) CurrentApproval(ctx context.Context, id string) (domain.Approval, error) {
	if err := ctx.Err(); err != nil {
		return domain.Approval{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.approvalCurrent[id]
	if !ok {
		return domain.Approval{}, app.ErrNotFound
	}
	return cloneApproval(l.approvals[idx]), nil
}

// ListApprovals returns current approvals of a work item in append order.
func (l *Log) ListApprovals(ctx context.Context, workItemID string) ([]domain.Approval, error) {
	return l.listApprovals(ctx, func(a domain.Approval) bool {
		return a.WorkItemID == workItemID
	})
}

// ListPendingApprovals returns current pending approvals across all work items.
func (l *Log) ListPendingApprovals(ctx context.Context) ([]domain.Approval, error) {
	return l.listApprovals(ctx, domain.Approval.IsPending)
}

func (l *Log) listApprovals(ctx context.Context, keep func(domain.Approval) bool) ([]domain.Approval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	out := make([]domain.Approval, 0)
	for _, idx := range l.approvalCurrent {
		if approval := l.approvals[idx]; keep(approval) {
			out = append(out, cloneApproval(approval))
		}
	}
	l.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.Approval) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

// AppendEvent appends an audit event.
func (l *Log) AppendEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	event.Payload = slices.Clone(event.Payload)
	event.Seq = l.nextSeq()
	l.events = append(l.events, event)
	l.eventsByItem[event.WorkItemID] = append(l.eventsByItem[event.WorkItemID], len(l.events)-1)
	return cloneEvent(event), nil
}

// ListEvents returns up to limit events of a work item, newest first.
func (l *Log) ListEvents(ctx context.Context, workItemID string, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	indexes := l.eventsByItem[workItemID]
	out := make([]domain.Event, 0, len(indexes))
	for i := len(indexes) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, cloneEvent(l.events[indexes[i]]))
	}
	return out, nil
}

// AppendComment appends a comment.
func (l *Log) AppendComment(ctx context.Context, comment domain.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.comments = append(l.comments, comment)
	return nil
}

// ListComments returns up to limit comments of a work item, newest first.
func (l *Log) ListComments(ctx context.Context, workItemID string, limit int) ([]domain.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Comment, 0)
	for i := len(l.comments) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if l.comments[i].WorkItemID == workItemID {
			out = append(out, l.comments[i])
		}
	}
	return out, nil
}

// AppendArtifact appends an artifact link.
func (l *Log) AppendArtifact(ctx context.Context, artifact domain.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.artifacts = append(l.artifacts, artifact)
	return nil
}

// ListArtifacts returns the artifacts of a work item in append order.
func (l *Log) ListArtifacts(ctx context.Context, workItemID string) ([]domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Artifact, 0)
	for _, artifact := range l.artifacts {
		if artifact.WorkItemID == workItemID {
			out = append(out, artifact)
		}
	}
	return out, nil
}

// matchesFilter applies every non-empty filter field.
func matchesFilter(item domain.WorkItem, filter app.WorkItemFilter) bool {
	if filter.Board != "" && item.Board != filter.Board {
		return false
	}
	if filter.Stage != "" && item.Stage != filter.Stage {
		return false
	}
	if filter.Status != "" && item.Status != filter.Status {
		return false
	}
	if filter.OwnerUserID != "" && item.OwnerUserID != filter.OwnerUserID {
		return false
	}
	if filter.Priority != "" && item.Priority != filter.Priority {
		return false
	}
	if filter.BusinessArea != "" && item.BusinessArea != filter.BusinessArea {
		return false
	}
	if filter.BlockedOnly && !item.IsBlocked() {
		return false
	}
	if filter.NeedsApprovalOnly && !item.NeedsApproval {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(item.Title), needle) && !strings.Contains(strings.ToLower(item.Description), needle) {
			return false
		}
	}
	return true
}


func cloneWorkItem(item domain.WorkItem) domain.WorkItem {
	if item.DueAt != nil {
		due := *item.DueAt
		item.DueAt = &due
	}
	if item.SLAHours != nil {
		sla := *item.SLAHours
		item.SLAHours = &sla
	}
	return item
}

func cloneApproval(approval domain.Approval) domain.Approval {
	if approval.DecidedAt != nil {
		decided := *approval.DecidedAt
		approval.DecidedAt = &decided
	}
	return approval
}

func cloneEvent(event domain.Event) domain.Event {
	event.Payload = slices.Clone(event.Payload)
	return event
}
