// Package common provides transport-agnostic server contracts used by HTTP, MCP and CLI adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// ErrInvalidRequest reports malformed transport input or an input-validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// ErrUnauthenticated reports a mutation attempted without a resolvable actor.
var ErrUnauthenticated = errors.New("actor is required")

// ErrForbidden reports a mutation attempted by a read-only role.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrGateNotSatisfied reports a stage move into a gated stage without an approved approval.
var ErrGateNotSatisfied = errors.New("gate not satisfied")

// ErrRuleViolation reports a rejected stage transition or terminal status change.
var ErrRuleViolation = errors.New("rule violation")

// ErrConflict reports a write that lost a race against another writer.
var ErrConflict = errors.New("conflict")

// ErrServiceUnavailable reports an adapter without a backing service.
var ErrServiceUnavailable = errors.New("service unavailable")

// errorClasses lists sentinels in match order with their wire names.
var errorClasses = []struct {
	sentinel error
	name     string
}{
	{ErrNotFound, "not_found"},
	{ErrGateNotSatisfied, "gate_not_satisfied"},
	{ErrRuleViolation, "rule_violation"},
	{ErrConflict, "conflict"},
	{ErrUnauthenticated, "unauthenticated"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidRequest, "invalid_request"},
	{ErrServiceUnavailable, "service_unavailable"},
}

// ErrorClass names the first adapter sentinel err wraps, or "" when none match.
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	for _, class := range errorClasses {
		if errors.Is(err, class.sentinel) {
			return class.name
		}
	}
	return ""
}

// ActorTuple carries caller identity for one mutation.
// An empty ID falls back to the actor attached to the request context.
type ActorTuple struct {
	ID   string
	Role string
}

// CreateWorkItemRequest stores transport input for work item creation.
type CreateWorkItemRequest struct {
	Board           string     `json:"board"`
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Priority        string     `json:"priority,omitempty"`
	BusinessArea    string     `json:"business_area,omitempty"`
	OwnerUserID     string     `json:"owner_user_id,omitempty"`
	RequesterUserID string     `json:"requester_user_id,omitempty"`
	DueAt           string     `json:"due_at,omitempty"`
	SLAHours        *int       `json:"sla_hours,omitempty"`
	Actor           ActorTuple `json:"-"`
}

// ListWorkItemsRequest stores list filters for current work items.
type ListWorkItemsRequest struct {
	Board             string
	Stage             string
	Status            string
	OwnerUserID       string
	Priority          string
	BusinessArea      string
	BlockedOnly       bool
	NeedsApprovalOnly bool
	Search            string
	Limit             int
}

// MoveStageRequest stores transport input for stage moves.
type MoveStageRequest struct {
	WorkItemID string     `json:"-"`
	ToStage    string     `json:"to_stage"`
	Actor      ActorTuple `json:"-"`
}

// SetStatusRequest stores transport input for status changes.
type SetStatusRequest struct {
	WorkItemID string     `json:"-"`
	Status     string     `json:"status"`
	Actor      ActorTuple `json:"-"`
}

// AssignRequest stores transport input for owner changes.
type AssignRequest struct {
	WorkItemID  string     `json:"-"`
	OwnerUserID string     `json:"owner_user_id"`
	Actor       ActorTuple `json:"-"`
}

// RecomputeRequest stores transport input for a derived-field repair.
type RecomputeRequest struct {
	WorkItemID string     `json:"-"`
	Actor      ActorTuple `json:"-"`
}

// AddDependencyRequest stores transport input for new dependency edges.
type AddDependencyRequest struct {
	WorkItemID      string     `json:"-"`
	DependsOnWorkID string     `json:"depends_on_work_id"`
	DepType         string     `json:"dep_type,omitempty"`
	Actor           ActorTuple `json:"-"`
}

// RemoveDependencyRequest stores transport input for dependency removal.
type RemoveDependencyRequest struct {
	WorkItemID string
	DepID      string
	Actor      ActorTuple
}

// CreateApprovalRequest stores transport input for approval requests.
type CreateApprovalRequest struct {
	WorkItemID         string     `json:"-"`
	Gate               string     `json:"gate"`
	RequiredFromUserID string     `json:"required_from_user_id"`
	Actor              ActorTuple `json:"-"`
}

// DecideApprovalRequest stores transport input for approval decisions.
type DecideApprovalRequest struct {
	ApprovalID string     `json:"-"`
	Status     string     `json:"status"`
	Note       string     `json:"note,omitempty"`
	Actor      ActorTuple `json:"-"`
}

// AddCommentRequest stores transport input for comments.
type AddCommentRequest struct {
	WorkItemID string     `json:"-"`
	Body       string     `json:"body"`
	Actor      ActorTuple `json:"-"`
}

// AddArtifactRequest stores transport input for artifact links.
type AddArtifactRequest struct {
	WorkItemID string     `json:"-"`
	Kind       string     `json:"kind"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Actor      ActorTuple `json:"-"`
}

// DependencyResult pairs a stored edge with the refreshed work item.
type DependencyResult struct {
	Dependency domain.DependencyEdge `json:"dependency"`
	WorkItem   domain.WorkItem       `json:"work_item"`
}

// ApprovalResult pairs a stored approval with the refreshed work item.
type ApprovalResult struct {
	Approval domain.Approval `json:"approval"`
	WorkItem domain.WorkItem `json:"work_item"`
}

// WorkflowService is the transport-facing workflow surface shared by every adapter.
type WorkflowService interface {
	ListBoards(context.Context) []domain.BoardDefinition
	CreateWorkItem(context.Context, CreateWorkItemRequest) (domain.WorkItem, error)
	GetWorkItem(context.Context, string) (domain.WorkItem, error)
	WorkDetail(context.Context, string) (app.WorkDetail, error)
	ListWorkItems(context.Context, ListWorkItemsRequest) ([]domain.WorkItem, error)
	History(context.Context, string) ([]domain.WorkItem, error)
	ListEvents(context.Context, string, int) ([]domain.Event, error)
	MoveStage(context.Context, MoveStageRequest) (domain.WorkItem, error)
	SetStatus(context.Context, SetStatusRequest) (domain.WorkItem, error)
	Assign(context.Context, AssignRequest) (domain.WorkItem, error)
	Recompute(context.Context, RecomputeRequest) (domain.WorkItem, error)
	AddDependency(context.Context, AddDependencyRequest) (DependencyResult, error)
	RemoveDependency(context.Context, RemoveDependencyRequest) (domain.WorkItem, error)
	CreateApproval(context.Context, CreateApprovalRequest) (ApprovalResult, error)
	DecideApproval(context.Context, DecideApprovalRequest) (ApprovalResult, error)
	AddComment(context.Context, AddCommentRequest) (domain.Comment, error)
	AddArtifact(context.Context, AddArtifactRequest) (domain.Artifact, error)
	DailySummary(context.Context) (app.DailySummary, error)
}
