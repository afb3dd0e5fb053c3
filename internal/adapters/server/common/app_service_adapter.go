package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service workflow APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

var _ WorkflowService = (*AppServiceAdapter)(nil)

// ListBoards returns every board definition.
func (a *AppServiceAdapter) ListBoards(ctx context.Context) []domain.BoardDefinition {
	if a == nil || a.service == nil {
		return domain.Boards()
	}
	return a.service.ListBoards(ctx)
}

// CreateWorkItem creates one work item on the entry stage of its board.
func (a *AppServiceAdapter) CreateWorkItem(ctx context.Context, in CreateWorkItemRequest) (domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return domain.WorkItem{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	dueAt, err := parseOptionalRFC3339(in.DueAt)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item, err := a.service.CreateWorkItem(ctx, app.CreateWorkItemInput{
		Board:           domain.Board(strings.TrimSpace(in.Board)),
		Type:            in.Type,
		Title:           in.Title,
		Description:     in.Description,
		Priority:        domain.Priority(strings.TrimSpace(strings.ToLower(in.Priority))),
		BusinessArea:    in.BusinessArea,
		OwnerUserID:     in.OwnerUserID,
		RequesterUserID: in.RequesterUserID,
		DueAt:           dueAt,
		SLAHours:        in.SLAHours,
	}, actor)
	if err != nil {
		return domain.WorkItem{}, mapAppError("create work item", err)
	}
	return item, nil
}

// GetWorkItem returns the current version of one work item.
func (a *AppServiceAdapter) GetWorkItem(ctx context.Context, workItemID string) (domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return domain.WorkItem{}, err
	}
	item, err := a.service.GetWorkItem(ctx, workItemID)
	if err != nil {
		return domain.WorkItem{}, mapAppError("get work item", err)
	}
	return item, nil
}

// WorkDetail returns the full read view of one work item.
func (a *AppServiceAdapter) WorkDetail(ctx context.Context, workItemID string) (app.WorkDetail, error) {
	if err := a.ready(); err != nil {
		return app.WorkDetail{}, err
	}
	detail, err := a.service.WorkDetail(ctx, workItemID)
	if err != nil {
		return app.WorkDetail{}, mapAppError("work detail", err)
	}
	return detail, nil
}

// ListWorkItems lists current work items matching the request filters.
func (a *AppServiceAdapter) ListWorkItems(ctx context.Context, in ListWorkItemsRequest) ([]domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	filter := app.WorkItemFilter{
		Board:             domain.Board(strings.TrimSpace(in.Board)),
		Stage:             strings.TrimSpace(in.Stage),
		Status:            domain.Status(strings.TrimSpace(in.Status)),
		OwnerUserID:       strings.TrimSpace(in.OwnerUserID),
		Priority:          domain.Priority(strings.TrimSpace(strings.ToLower(in.Priority))),
		BusinessArea:      strings.TrimSpace(in.BusinessArea),
		BlockedOnly:       in.BlockedOnly,
		NeedsApprovalOnly: in.NeedsApprovalOnly,
		Search:            in.Search,
		Limit:             in.Limit,
	}
	if filter.Board != "" && !domain.IsValidBoard(filter.Board) {
		return nil, fmt.Errorf("list work items: unknown board %q: %w", in.Board, ErrInvalidRequest)
	}
	if filter.Status != "" && !domain.IsValidStatus(filter.Status) {
		return nil, fmt.Errorf("list work items: unknown status %q: %w", in.Status, ErrInvalidRequest)
	}
	if filter.Priority != "" && !domain.IsValidPriority(filter.Priority) {
		return nil, fmt.Errorf("list work items: unknown priority %q: %w", in.Priority, ErrInvalidRequest)
	}
	items, err := a.service.ListWorkItems(ctx, filter)
	if err != nil {
		return nil, mapAppError("list work items", err)
	}
	return items, nil
}

// History returns every version of one work item.
func (a *AppServiceAdapter) History(ctx context.Context, workItemID string) ([]domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	versions, err := a.service.History(ctx, workItemID)
	if err != nil {
		return nil, mapAppError("history", err)
	}
	return versions, nil
}

// ListEvents returns the newest audit events of one work item.
func (a *AppServiceAdapter) ListEvents(ctx context.Context, workItemID string, limit int) ([]domain.Event, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("list events: limit must be >= 0: %w", ErrInvalidRequest)
	}
	events, err := a.service.ListEvents(ctx, workItemID, limit)
	if err != nil {
		return nil, mapAppError("list events", err)
	}
	return events, nil
}

// MoveStage moves one work item to a new stage.
func (a *AppServiceAdapter) MoveStage(ctx context.Context, in MoveStageRequest) (domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return domain.WorkItem{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item, err := a.service.MoveStage(ctx, strings.TrimSpace(in.WorkItemID), in.ToStage, actor)
	if err != nil {
		return domain.WorkItem{}, mapAppError("move stage", err)
	}
	return item, nil
}

// SetStatus changes the lifecycle status of one work item.
func (a *AppServiceAdapter) SetStatus(ctx context.Context, in SetStatusRequest) (domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return domain.WorkItem{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item, err := a.service.SetStatus(ctx, strings.TrimSpace(in.WorkItemID), domain.Status(in.Status), actor)
	if err != nil {
		return domain.WorkItem{}, mapAppError("set status", err)
	}
	return item, nil
}

// Assign hands one work item to a new owner.
func (a *AppServiceAdapter) Assign(ctx context.Context, in AssignRequest) (domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return domain.WorkItem{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item, err := a.service.Assign(ctx, strings.TrimSpace(in.WorkItemID), in.OwnerUserID, actor)
	if err != nil {
		return domain.WorkItem{}, mapAppError("assign", err)
	}
	return item, nil
}

// Recompute refreshes the blocker count and needs-approval flag of one work item.
func (a *AppServiceAdapter) Recompute(ctx context.Context, in RecomputeRequest) (domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return domain.WorkItem{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item, err := a.service.Recompute(ctx, strings.TrimSpace(in.WorkItemID), actor)
	if err != nil {
		return domain.WorkItem{}, mapAppError("recompute", err)
	}
	return item, nil
}

// AddDependency records one dependency edge.
func (a *AppServiceAdapter) AddDependency(ctx context.Context, in AddDependencyRequest) (DependencyResult, error) {
	if err := a.ready(); err != nil {
		return DependencyResult{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return DependencyResult{}, err
	}
	edge, item, err := a.service.AddDependency(
		ctx,
		strings.TrimSpace(in.WorkItemID),
		strings.TrimSpace(in.DependsOnWorkID),
		domain.DepType(in.DepType),
		actor,
	)
	if err != nil {
		return DependencyResult{}, mapAppError("add dependency", err)
	}
	return DependencyResult{Dependency: edge, WorkItem: item}, nil
}

// RemoveDependency soft-deletes one dependency edge.
func (a *AppServiceAdapter) RemoveDependency(ctx context.Context, in RemoveDependencyRequest) (domain.WorkItem, error) {
	if err := a.ready(); err != nil {
		return domain.WorkItem{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	item, err := a.service.RemoveDependency(ctx, strings.TrimSpace(in.WorkItemID), strings.TrimSpace(in.DepID), actor)
	if err != nil {
		return domain.WorkItem{}, mapAppError("remove dependency", err)
	}
	return item, nil
}

// CreateApproval opens one pending approval.
func (a *AppServiceAdapter) CreateApproval(ctx context.Context, in CreateApprovalRequest) (ApprovalResult, error) {
	if err := a.ready(); err != nil {
		return ApprovalResult{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return ApprovalResult{}, err
	}
	approval, item, err := a.service.CreateApproval(
		ctx,
		strings.TrimSpace(in.WorkItemID),
		domain.Gate(strings.TrimSpace(strings.ToLower(in.Gate))),
		in.RequiredFromUserID,
		actor,
	)
	if err != nil {
		return ApprovalResult{}, mapAppError("create approval", err)
	}
	return ApprovalResult{Approval: approval, WorkItem: item}, nil
}

// DecideApproval records one approval decision.
func (a *AppServiceAdapter) DecideApproval(ctx context.Context, in DecideApprovalRequest) (ApprovalResult, error) {
	if err := a.ready(); err != nil {
		return ApprovalResult{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return ApprovalResult{}, err
	}
	approval, item, err := a.service.DecideApproval(
		ctx,
		strings.TrimSpace(in.ApprovalID),
		domain.ApprovalStatus(strings.TrimSpace(strings.ToLower(in.Status))),
		in.Note,
		actor,
	)
	if err != nil {
		return ApprovalResult{}, mapAppError("decide approval", err)
	}
	return ApprovalResult{Approval: approval, WorkItem: item}, nil
}

// AddComment appends one comment.
func (a *AppServiceAdapter) AddComment(ctx context.Context, in AddCommentRequest) (domain.Comment, error) {
	if err := a.ready(); err != nil {
		return domain.Comment{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := a.service.AddComment(ctx, strings.TrimSpace(in.WorkItemID), in.Body, actor)
	if err != nil {
		return domain.Comment{}, mapAppError("add comment", err)
	}
	return comment, nil
}

// AddArtifact links one external resource.
func (a *AppServiceAdapter) AddArtifact(ctx context.Context, in AddArtifactRequest) (domain.Artifact, error) {
	if err := a.ready(); err != nil {
		return domain.Artifact{}, err
	}
	actor, err := resolveActor(ctx, in.Actor)
	if err != nil {
		return domain.Artifact{}, err
	}
	artifact, err := a.service.AddArtifact(ctx, strings.TrimSpace(in.WorkItemID), app.AddArtifactInput{
		Kind:  domain.ArtifactKind(strings.TrimSpace(strings.ToLower(in.Kind))),
		Title: in.Title,
		URL:   in.URL,
	}, actor)
	if err != nil {
		return domain.Artifact{}, mapAppError("add artifact", err)
	}
	return artifact, nil
}

// DailySummary returns the cross-board status snapshot.
func (a *AppServiceAdapter) DailySummary(ctx context.Context) (app.DailySummary, error) {
	if err := a.ready(); err != nil {
		return app.DailySummary{}, err
	}
	summary, err := a.service.DailySummary(ctx)
	if err != nil {
		return app.DailySummary{}, mapAppError("daily summary", err)
	}
	return summary, nil
}

// Message renders an adapter error for callers: rule violations report their
// reason verbatim, everything else flattens to one line.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rule *domain.RuleError
	if errors.As(err, &rule) {
		return rule.Error()
	}
	return strings.ReplaceAll(err.Error(), "\n", ": ")
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrServiceUnavailable)
	}
	return nil
}

// resolveActor prefers the explicit tuple and falls back to the context actor.
func resolveActor(ctx context.Context, tuple ActorTuple) (domain.Actor, error) {
	if strings.TrimSpace(tuple.ID) != "" {
		actor, err := domain.NewActor(tuple.ID, domain.Role(tuple.Role))
		if err != nil {
			return domain.Actor{}, fmt.Errorf("actor role %q is unsupported: %w", tuple.Role, errors.Join(ErrInvalidRequest, err))
		}
		return actor, nil
	}
	if actor, ok := app.ActorFromContext(ctx); ok {
		return actor, nil
	}
	return domain.Actor{}, ErrUnauthenticated
}

// parseOptionalRFC3339 parses one optional RFC3339 timestamp string.
func parseOptionalRFC3339(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("due_at must be RFC3339: %w", ErrInvalidRequest)
	}
	utc := ts.UTC()
	return &utc, nil
}

// mapAppError classifies app and domain failures into transport sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrGateNotSatisfied):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrGateNotSatisfied, err))
	case errors.Is(err, app.ErrConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrForbidden):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrForbidden, err))
	case errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, app.ErrTerminalStatusViolation):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRuleViolation, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidSLAHours),
		errors.Is(err, domain.ErrInvalidDepType),
		errors.Is(err, domain.ErrSelfDependency),
		errors.Is(err, domain.ErrInvalidGate),
		errors.Is(err, domain.ErrInvalidDecision),
		errors.Is(err, domain.ErrInvalidBody),
		errors.Is(err, domain.ErrInvalidArtifactKind),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, domain.ErrInvalidActor),
		errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrUnknownBoard):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
