package domain

import (
	"slices"
	"strings"
	"time"
)

// Status represents the lifecycle status of a work item, independent of its stage.
type Status string

// Status values.
const (
	StatusOpen      Status = "open"
	StatusBlocked   Status = "blocked"
	StatusInReview  Status = "in_review"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
)

var validStatuses = []Status{StatusOpen, StatusBlocked, StatusInReview, StatusDone, StatusCancelled}

// Priority ranks urgency, p0 being the most urgent.
type Priority string

// Priority values.
const (
	PriorityP0 Priority = "p0"
	PriorityP1 Priority = "p1"
	PriorityP2 Priority = "p2"
	PriorityP3 Priority = "p3"
)

var validPriorities = []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3}

// DefaultBusinessArea is used when a work item is created without one.
const DefaultBusinessArea = "product"

// WorkItem is one version row of a ticket moving through a board.
// Rows are immutable once appended; a mutation is a new row with the same ID.
type WorkItem struct {
	ID              string     `json:"work_id"`
	Board           Board      `json:"board"`
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Stage           string     `json:"stage"`
	Status          Status     `json:"status"`
	Priority        Priority   `json:"priority"`
	BusinessArea    string     `json:"business_area"`
	OwnerUserID     string     `json:"owner_user_id"`
	RequesterUserID string     `json:"requester_user_id"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	SLAHours        *int       `json:"sla_hours,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	BlockerCount    int        `json:"blocker_count"`
	NeedsApproval   bool       `json:"needs_approval"`
	LastEventAt     time.Time  `json:"last_event_at"`
	// Seq is assigned by the record log on append; zero until stored.
	Seq int64 `json:"seq"`
}

// WorkItemInput holds input values for work item creation.
type WorkItemInput struct {
	ID              string
	Board           Board
	Type            string
	Title           string
	Description     string
	Priority        Priority
	BusinessArea    string
	OwnerUserID     string
	RequesterUserID string
	DueAt           *time.Time
	SLAHours        *int
}

// NewWorkItem constructs the first version of a work item, placed on the
// board's entry stage with status open.
func NewWorkItem(in WorkItemInput, now time.Time) (WorkItem, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Board = NormalizeBoard(in.Board)
	in.Type = strings.TrimSpace(in.Type)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.BusinessArea = strings.TrimSpace(in.BusinessArea)
	in.OwnerUserID = strings.TrimSpace(in.OwnerUserID)
	in.RequesterUserID = strings.TrimSpace(in.RequesterUserID)

	if in.ID == "" {
		return WorkItem{}, ErrInvalidID
	}
	firstStage, ok := FirstStage(in.Board)
	if !ok {
		return WorkItem{}, NewRuleError(ErrUnknownBoard, "Unknown board "+string(in.Board))
	}
	if in.Type == "" {
		return WorkItem{}, ErrInvalidType
	}
	if in.Title == "" {
		return WorkItem{}, ErrInvalidTitle
	}
	if in.Priority == "" {
		in.Priority = PriorityP2
	}
	if !IsValidPriority(in.Priority) {
		return WorkItem{}, ErrInvalidPriority
	}
	if in.BusinessArea == "" {
		in.BusinessArea = DefaultBusinessArea
	}
	if in.SLAHours != nil && *in.SLAHours <= 0 {
		return WorkItem{}, ErrInvalidSLAHours
	}
	if in.OwnerUserID == "" || in.RequesterUserID == "" {
		return WorkItem{}, ErrInvalidActor
	}

	ts := now.UTC()
	return WorkItem{
		ID:              in.ID,
		Board:           in.Board,
		Type:            in.Type,
		Title:           in.Title,
		Description:     in.Description,
		Stage:           firstStage,
		Status:          StatusOpen,
		Priority:        in.Priority,
		BusinessArea:    in.BusinessArea,
		OwnerUserID:     in.OwnerUserID,
		RequesterUserID: in.RequesterUserID,
		DueAt:           normalizeDueAt(in.DueAt),
		SLAHours:        cloneInt(in.SLAHours),
		CreatedAt:       ts,
		UpdatedAt:       ts,
		LastEventAt:     ts,
	}, nil
}

// Next returns a copy of the current version to be mutated into the next one.
// Derived fields and identity carry forward; Seq is cleared for the store to assign.
func (w WorkItem) Next(now time.Time) WorkItem {
	next := w
	next.DueAt = normalizeDueAt(w.DueAt)
	next.SLAHours = cloneInt(w.SLAHours)
	next.UpdatedAt = now.UTC()
	next.LastEventAt = now.UTC()
	next.Seq = 0
	return next
}

// MoveTo sets the stage. Callers validate the transition first.
func (w *WorkItem) MoveTo(stage string) {
	w.Stage = stage
}

// SetStatus sets the status after validating the value.
func (w *WorkItem) SetStatus(status Status) error {
	status = NormalizeStatus(status)
	if !IsValidStatus(status) {
		return ErrInvalidStatus
	}
	w.Status = status
	return nil
}

// AssignOwner sets the owning user.
func (w *WorkItem) AssignOwner(ownerUserID string) error {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return ErrInvalidActor
	}
	w.OwnerUserID = ownerUserID
	return nil
}

// SetBlockerCount stores the derived blocker count.
func (w *WorkItem) SetBlockerCount(count int) {
	if count < 0 {
		count = 0
	}
	w.BlockerCount = count
}

// SetNeedsApproval stores the derived needs-approval flag.
func (w *WorkItem) SetNeedsApproval(needs bool) {
	w.NeedsApproval = needs
}

// IsAtFinalStage reports whether the item sits on its board's terminal stage.
func (w WorkItem) IsAtFinalStage() bool {
	final := FinalStage(w.Board)
	return final != "" && w.Stage == final
}

// IsBlocked reports whether any active dependency edge originates from the item.
func (w WorkItem) IsBlocked() bool {
	return w.BlockerCount > 0
}

// NormalizeStatus canonicalizes status values.
func NormalizeStatus(status Status) Status {
	return Status(strings.TrimSpace(strings.ToLower(string(status))))
}

// IsValidStatus reports whether the status is supported.
func IsValidStatus(status Status) bool {
	return slices.Contains(validStatuses, NormalizeStatus(status))
}

// IsValidPriority reports whether the priority is supported.
func IsValidPriority(priority Priority) bool {
	return slices.Contains(validPriorities, priority)
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
