package domain

import (
	"strings"
	"time"
)

// ApprovalStatus is the decision state of an approval.
type ApprovalStatus string

// ApprovalStatus values.
const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is one version of a gate approval request for a work item.
type Approval struct {
	ID                 string         `json:"approval_id"`
	WorkItemID         string         `json:"work_id"`
	Gate               Gate           `json:"gate"`
	RequiredFromUserID string         `json:"required_from_user_id"`
	Status             ApprovalStatus `json:"status"`
	DecisionNote       string         `json:"decision_note"`
	DecidedAt          *time.Time     `json:"decided_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	Seq                int64          `json:"seq"`
}

// NewApproval constructs a pending approval.
func NewApproval(id, workItemID string, gate Gate, requiredFromUserID string, now time.Time) (Approval, error) {
	id = strings.TrimSpace(id)
	workItemID = strings.TrimSpace(workItemID)
	requiredFromUserID = strings.TrimSpace(requiredFromUserID)
	gate = Gate(strings.TrimSpace(strings.ToLower(string(gate))))
	if id == "" || workItemID == "" {
		return Approval{}, ErrInvalidID
	}
	if !IsValidGate(gate) {
		return Approval{}, ErrInvalidGate
	}
	if requiredFromUserID == "" {
		return Approval{}, ErrInvalidActor
	}
	return Approval{
		ID:                 id,
		WorkItemID:         workItemID,
		Gate:               gate,
		RequiredFromUserID: requiredFromUserID,
		Status:             ApprovalPending,
		CreatedAt:          now.UTC(),
	}, nil
}

// Decide returns the next version carrying the decision.
func (a Approval) Decide(status ApprovalStatus, note string, now time.Time) (Approval, error) {
	status = ApprovalStatus(strings.TrimSpace(strings.ToLower(string(status))))
	if status != ApprovalApproved && status != ApprovalRejected {
		return Approval{}, ErrInvalidDecision
	}
	ts := now.UTC()
	next := a
	next.Status = status
	next.DecisionNote = strings.TrimSpace(note)
	next.DecidedAt = &ts
	next.CreatedAt = ts
	next.Seq = 0
	return next, nil
}

// IsPending reports whether the approval awaits a decision.
func (a Approval) IsPending() bool {
	return a.Status == ApprovalPending
}

// HasApprovedGate reports whether any current approval for gate is approved.
func HasApprovedGate(gate Gate, approvals []Approval) bool {
	for _, approval := range approvals {
		if approval.Gate == gate && approval.Status == ApprovalApproved {
			return true
		}
	}
	return false
}

// CountPendingApprovals counts current approvals still awaiting a decision.
func CountPendingApprovals(approvals []Approval) int {
	count := 0
	for _, approval := range approvals {
		if approval.IsPending() {
			count++
		}
	}
	return count
}
