package app

import (
	"context"

	"github.com/hylla/metricops/internal/domain"
)

// WorkItemFilter narrows the current work item projection.
type WorkItemFilter struct {
	Board             domain.Board
	Stage             string
	Status            domain.Status
	OwnerUserID       string
	Priority          domain.Priority
	BusinessArea      string
	BlockedOnly       bool
	NeedsApprovalOnly bool
	// Search matches title or description case-insensitively.
	Search string
	// Limit caps the result; <= 0 returns every match.
	Limit int
}

// RecordLog is the versioned, append-only store behind the engine.
// Every stream keeps all versions; the current version of an id is the one
// with the highest Seq. Missing ids yield ErrNotFound.
type RecordLog interface {
	// AppendWorkItem appends a version when the current Seq for item.ID equals
	// baseSeq (0 for a new id) and returns the stored row. Otherwise it
	// returns ErrConflict and appends nothing.
	AppendWorkItem(ctx context.Context, item domain.WorkItem, baseSeq int64) (domain.WorkItem, error)
	CurrentWorkItem(ctx context.Context, id string) (domain.WorkItem, error)
	WorkItemVersions(ctx context.Context, id string) ([]domain.WorkItem, error)
	ListWorkItems(ctx context.Context, filter WorkItemFilter) ([]domain.WorkItem, error)

	AppendDependency(ctx context.Context, edge domain.DependencyEdge) (domain.DependencyEdge, error)
	CurrentDependency(ctx context.Context, id string) (domain.DependencyEdge, error)
	// ListDependencies returns current edges where workItemID is either endpoint.
	ListDependencies(ctx context.Context, workItemID string) ([]domain.DependencyEdge, error)

	AppendApproval(ctx context.Context, approval domain.Approval) (domain.Approval, error)
	CurrentApproval(ctx context.Context, id string) (domain.Approval, error)
	ListApprovals(ctx context.Context, workItemID string) ([]domain.Approval, error)
	// ListPendingApprovals returns current pending approvals across all work items.
	ListPendingApprovals(ctx context.Context) ([]domain.Approval, error)

	AppendEvent(ctx context.Context, event domain.Event) (domain.Event, error)
	// ListEvents returns up to limit events, newest first. limit <= 0 means all.
	ListEvents(ctx context.Context, workItemID string, limit int) ([]domain.Event, error)

	AppendComment(ctx context.Context, comment domain.Comment) error
	ListComments(ctx context.Context, workItemID string, limit int) ([]domain.Comment, error)
	AppendArtifact(ctx context.Context, artifact domain.Artifact) error
	ListArtifacts(ctx context.Context, workItemID string) ([]domain.Artifact, error)
}
