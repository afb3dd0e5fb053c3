package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hylla/metricops/internal/domain"
)

// Default limits applied when ServiceConfig leaves them unset.
const (
	defaultListLimit           = 200
	defaultDetailCommentLimit  = 20
	defaultDetailEventLimit    = 100
	defaultSummaryBlockedLimit = 20
	commentExcerptRunes        = 60
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	ListLimit           int
	DetailCommentLimit  int
	DetailEventLimit    int
	SummaryBlockedLimit int
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service is the workflow engine. It validates every mutation against the
// stage graph, appends version rows to the record log and records one audit
// event per mutation.
type Service struct {
	log   RecordLog
	idGen IDGenerator
	clock Clock
	locks *keyedMutex
	cfg   ServiceConfig
}

// NewService constructs a new value for this package.
func NewService(log RecordLog, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = uuid.NewString
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	if cfg.DetailCommentLimit <= 0 {
		cfg.DetailCommentLimit = defaultDetailCommentLimit
	}
	if cfg.DetailEventLimit <= 0 {
		cfg.DetailEventLimit = defaultDetailEventLimit
	}
	if cfg.SummaryBlockedLimit <= 0 {
		cfg.SummaryBlockedLimit = defaultSummaryBlockedLimit
	}
	return &Service{
		log:   log,
		idGen: idGen,
		clock: clock,
		locks: newKeyedMutex(),
		cfg:   cfg,
	}
}

// CreateWorkItemInput holds input values for create work item operations.
type CreateWorkItemInput struct {
	Board        domain.Board
	Type         string
	Title        string
	Description  string
	Priority     domain.Priority
	BusinessArea string
	// OwnerUserID and RequesterUserID default to the acting user.
	OwnerUserID     string
	RequesterUserID string
	DueAt           *time.Time
	SLAHours        *int
}

// CreateWorkItem places a new work item on the entry stage of its board.
func (s *Service) CreateWorkItem(ctx context.Context, in CreateWorkItemInput, actor domain.Actor) (domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	owner := strings.TrimSpace(in.OwnerUserID)
	if owner == "" {
		owner = actor.ID
	}
	requester := strings.TrimSpace(in.RequesterUserID)
	if requester == "" {
		requester = actor.ID
	}

	now := s.clock()
	item, err := domain.NewWorkItem(domain.WorkItemInput{
		ID:              s.idGen(),
		Board:           in.Board,
		Type:            in.Type,
		Title:           in.Title,
		Description:     in.Description,
		Priority:        in.Priority,
		BusinessArea:    in.BusinessArea,
		OwnerUserID:     owner,
		RequesterUserID: requester,
		DueAt:           in.DueAt,
		SLAHours:        in.SLAHours,
	}, now)
	if err != nil {
		return domain.WorkItem{}, err
	}

	unlock := s.locks.Lock(item.ID)
	defer unlock()

	stored, err := s.log.AppendWorkItem(ctx, item, 0)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if _, err := s.insertEvent(ctx, stored.ID, actor.ID, domain.EventCreated, domain.Pairs("stage", stored.Stage), now); err != nil {
		return domain.WorkItem{}, err
	}
	return stored, nil
}

// MoveStage moves a work item to toStage. Forward moves are limited to the
// adjacent stage. Entering a gated stage needs an approved approval for that
// gate unless the actor is an admin.
func (s *Service) MoveStage(ctx context.Context, workItemID, toStage string, actor domain.Actor) (domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	toStage = strings.TrimSpace(toStage)

	unlock := s.locks.Lock(workItemID)
	defer unlock()

	current, err := s.log.CurrentWorkItem(ctx, workItemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if err := domain.ValidateTransition(current.Board, current.Stage, toStage).Err(); err != nil {
		return domain.WorkItem{}, err
	}
	if gate, ok := domain.RequiredGate(current.Board, toStage); ok && !actor.IsAdmin() {
		approvals, err := s.log.ListApprovals(ctx, workItemID)
		if err != nil {
			return domain.WorkItem{}, err
		}
		if !domain.HasApprovedGate(gate, approvals) {
			return domain.WorkItem{}, domain.NewRuleError(ErrGateNotSatisfied, "Transition requires "+string(gate))
		}
	}

	now := s.clock()
	next := current.Next(now)
	next.MoveTo(toStage)
	stored, err := s.log.AppendWorkItem(ctx, next, current.Seq)
	if err != nil {
		return domain.WorkItem{}, err
	}
	payload := domain.Pairs("from", current.Stage, "to", toStage)
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventStageChanged, payload, now); err != nil {
		return domain.WorkItem{}, err
	}
	return stored, nil
}

// SetStatus changes the lifecycle status. done is only accepted on the
// board's final stage.
func (s *Service) SetStatus(ctx context.Context, workItemID string, status domain.Status, actor domain.Actor) (domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	status = domain.NormalizeStatus(status)
	if !domain.IsValidStatus(status) {
		return domain.WorkItem{}, domain.ErrInvalidStatus
	}

	unlock := s.locks.Lock(workItemID)
	defer unlock()

	current, err := s.log.CurrentWorkItem(ctx, workItemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if status == domain.StatusDone && !current.IsAtFinalStage() {
		return domain.WorkItem{}, domain.NewRuleError(ErrTerminalStatusViolation, "Done only allowed at final stage")
	}

	now := s.clock()
	next := current.Next(now)
	if err := next.SetStatus(status); err != nil {
		return domain.WorkItem{}, err
	}
	stored, err := s.log.AppendWorkItem(ctx, next, current.Seq)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventStatusChanged, domain.Pairs("status", string(status)), now); err != nil {
		return domain.WorkItem{}, err
	}
	return stored, nil
}

// Assign hands the work item to a new owner.
func (s *Service) Assign(ctx context.Context, workItemID, ownerUserID string, actor domain.Actor) (domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.WorkItem{}, err
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return domain.WorkItem{}, domain.ErrInvalidActor
	}

	unlock := s.locks.Lock(workItemID)
	defer unlock()

	current, err := s.log.CurrentWorkItem(ctx, workItemID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	now := s.clock()
	next := current.Next(now)
	if err := next.AssignOwner(ownerUserID); err != nil {
		return domain.WorkItem{}, err
	}
	stored, err := s.log.AppendWorkItem(ctx, next, current.Seq)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventAssigned, domain.Pairs("owner_user_id", ownerUserID), now); err != nil {
		return domain.WorkItem{}, err
	}
	return stored, nil
}

// AddDependency records that workItemID waits on dependsOnID and refreshes
// the blocker count of workItemID.
func (s *Service) AddDependency(ctx context.Context, workItemID, dependsOnID string, depType domain.DepType, actor domain.Actor) (domain.DependencyEdge, domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.DependencyEdge{}, domain.WorkItem{}, err
	}
	if depType == "" {
		depType = domain.DepTypeBlocks
	}

	unlock := s.locks.Lock(workItemID)
	defer unlock()

	if _, err := s.log.CurrentWorkItem(ctx, workItemID); err != nil {
		return domain.DependencyEdge{}, domain.WorkItem{}, err
	}
	if _, err := s.log.CurrentWorkItem(ctx, dependsOnID); err != nil {
		return domain.DependencyEdge{}, domain.WorkItem{}, err
	}

	now := s.clock()
	edge, err := domain.NewDependencyEdge(s.idGen(), workItemID, dependsOnID, depType, now)
	if err != nil {
		return domain.DependencyEdge{}, domain.WorkItem{}, err
	}
	stored, err := s.log.AppendDependency(ctx, edge)
	if err != nil {
		return domain.DependencyEdge{}, domain.WorkItem{}, err
	}
	payload := domain.Pairs(
		"depends_on_work_id", stored.DependsOnID,
		"dep_type", string(stored.Type),
		"dep_id", stored.ID,
	)
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventDepAdded, payload, now); err != nil {
		return domain.DependencyEdge{}, domain.WorkItem{}, err
	}
	item, err := s.recomputeBlockers(ctx, workItemID)
	if err != nil {
		return domain.DependencyEdge{}, domain.WorkItem{}, err
	}
	return stored, item, nil
}

// RemoveDependency soft-deletes one edge owned by workItemID and refreshes
// its blocker count. Removing an already deleted edge appends another
// deleted version.
func (s *Service) RemoveDependency(ctx context.Context, workItemID, depID string, actor domain.Actor) (domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.WorkItem{}, err
	}

	unlock := s.locks.Lock(workItemID)
	defer unlock()

	if _, err := s.log.CurrentWorkItem(ctx, workItemID); err != nil {
		return domain.WorkItem{}, err
	}
	edge, err := s.log.CurrentDependency(ctx, depID)
	if err != nil {
		return domain.WorkItem{}, err
	}
	if edge.WorkItemID != workItemID {
		return domain.WorkItem{}, ErrNotFound
	}

	now := s.clock()
	if _, err := s.log.AppendDependency(ctx, edge.SoftDeleted(now)); err != nil {
		return domain.WorkItem{}, err
	}
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventDepRemoved, domain.Pairs("dep_id", edge.ID), now); err != nil {
		return domain.WorkItem{}, err
	}
	return s.recomputeBlockers(ctx, workItemID)
}

// CreateApproval opens a pending approval for a gate and marks the work item
// as needing approval.
func (s *Service) CreateApproval(ctx context.Context, workItemID string, gate domain.Gate, requiredFromUserID string, actor domain.Actor) (domain.Approval, domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}

	unlock := s.locks.Lock(workItemID)
	defer unlock()

	if _, err := s.log.CurrentWorkItem(ctx, workItemID); err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	now := s.clock()
	approval, err := domain.NewApproval(s.idGen(), workItemID, gate, requiredFromUserID, now)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	stored, err := s.log.AppendApproval(ctx, approval)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	payload := domain.Pairs(
		"gate", string(stored.Gate),
		"required_from_user_id", stored.RequiredFromUserID,
		"approval_id", stored.ID,
	)
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventApprovalCreated, payload, now); err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	item, err := s.recomputeNeedsApproval(ctx, workItemID)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	return stored, item, nil
}

// DecideApproval records an approved or rejected decision on the current
// version of an approval. A decided approval may be decided again.
func (s *Service) DecideApproval(ctx context.Context, approvalID string, status domain.ApprovalStatus, note string, actor domain.Actor) (domain.Approval, domain.WorkItem, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	located, err := s.log.CurrentApproval(ctx, approvalID)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}

	unlock := s.locks.Lock(located.WorkItemID)
	defer unlock()

	current, err := s.log.CurrentApproval(ctx, approvalID)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	now := s.clock()
	decided, err := current.Decide(status, note, now)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	stored, err := s.log.AppendApproval(ctx, decided)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	payload := domain.Pairs(
		"status", string(stored.Status),
		"gate", string(stored.Gate),
		"approval_id", stored.ID,
	)
	if _, err := s.insertEvent(ctx, stored.WorkItemID, actor.ID, domain.EventApprovalDecided, payload, now); err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	item, err := s.recomputeNeedsApproval(ctx, stored.WorkItemID)
	if err != nil {
		return domain.Approval{}, domain.WorkItem{}, err
	}
	return stored, item, nil
}

// AddComment appends a comment and records an excerpt of it in the audit trail.
func (s *Service) AddComment(ctx context.Context, workItemID, body string, actor domain.Actor) (domain.Comment, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.Comment{}, err
	}
	unlock := s.locks.Lock(workItemID)
	defer unlock()

	if _, err := s.log.CurrentWorkItem(ctx, workItemID); err != nil {
		return domain.Comment{}, err
	}
	now := s.clock()
	comment, err := domain.NewComment(s.idGen(), workItemID, actor.ID, body, now)
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.log.AppendComment(ctx, comment); err != nil {
		return domain.Comment{}, err
	}
	payload := domain.Pairs("body", domain.Excerpt(comment.Body, commentExcerptRunes))
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventCommentAdded, payload, now); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

// AddArtifactInput holds input values for add artifact operations.
type AddArtifactInput struct {
	Kind  domain.ArtifactKind
	Title string
	URL   string
}

// AddArtifact links an external resource to a work item.
func (s *Service) AddArtifact(ctx context.Context, workItemID string, in AddArtifactInput, actor domain.Actor) (domain.Artifact, error) {
	actor, err := authorizeMutation(actor)
	if err != nil {
		return domain.Artifact{}, err
	}
	unlock := s.locks.Lock(workItemID)
	defer unlock()

	if _, err := s.log.CurrentWorkItem(ctx, workItemID); err != nil {
		return domain.Artifact{}, err
	}
	now := s.clock()
	artifact, err := domain.NewArtifact(domain.ArtifactInput{
		ID:              s.idGen(),
		WorkItemID:      workItemID,
		Kind:            in.Kind,
		Title:           in.Title,
		URL:             in.URL,
		CreatedByUserID: actor.ID,
	}, now)
	if err != nil {
		return domain.Artifact{}, err
	}
	if err := s.log.AppendArtifact(ctx, artifact); err != nil {
		return domain.Artifact{}, err
	}
	payload := domain.Pairs("kind", string(artifact.Kind), "url", artifact.URL)
	if _, err := s.insertEvent(ctx, workItemID, actor.ID, domain.EventArtifactAdded, payload, now); err != nil {
		return domain.Artifact{}, err
	}
	return artifact, nil
}

// insertEvent appends one audit event. It has no derived effects.
func (s *Service) insertEvent(ctx context.Context, workItemID, actorID string, eventType domain.EventType, payload []domain.KV, now time.Time) (domain.Event, error) {
	event, err := domain.NewEvent(s.idGen(), workItemID, actorID, eventType, payload, now)
	if err != nil {
		return domain.Event{}, err
	}
	return s.log.AppendEvent(ctx, event)
}

// authorizeMutation normalizes the actor and rejects read-only roles.
func authorizeMutation(actor domain.Actor) (domain.Actor, error) {
	actor, err := domain.NewActor(actor.ID, actor.Role)
	if err != nil {
		return domain.Actor{}, err
	}
	if !actor.CanMutate() {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}
