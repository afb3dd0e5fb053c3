package domain

import (
	"slices"
	"strings"
	"time"
)

// DepType classifies why one work item waits on another.
type DepType string

// DepType values.
const (
	DepTypeBlocks         DepType = "blocks"
	DepTypeDataNeeded     DepType = "data_needed"
	DepTypeApprovalNeeded DepType = "approval_needed"
)

var validDepTypes = []DepType{DepTypeBlocks, DepTypeDataNeeded, DepTypeApprovalNeeded}

// DependencyEdge is one version of a "work item depends on" edge.
// Edges are never physically removed; removal appends a version with Deleted set.
type DependencyEdge struct {
	ID          string    `json:"dep_id"`
	WorkItemID  string    `json:"work_id"`
	DependsOnID string    `json:"depends_on_work_id"`
	Type        DepType   `json:"dep_type"`
	Deleted     bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	Seq         int64     `json:"seq"`
}

// NewDependencyEdge constructs an active edge.
func NewDependencyEdge(id, workItemID, dependsOnID string, depType DepType, now time.Time) (DependencyEdge, error) {
	id = strings.TrimSpace(id)
	workItemID = strings.TrimSpace(workItemID)
	dependsOnID = strings.TrimSpace(dependsOnID)
	depType = DepType(strings.TrimSpace(strings.ToLower(string(depType))))
	if id == "" || workItemID == "" || dependsOnID == "" {
		return DependencyEdge{}, ErrInvalidID
	}
	if workItemID == dependsOnID {
		return DependencyEdge{}, ErrSelfDependency
	}
	if !IsValidDepType(depType) {
		return DependencyEdge{}, ErrInvalidDepType
	}
	return DependencyEdge{
		ID:          id,
		WorkItemID:  workItemID,
		DependsOnID: dependsOnID,
		Type:        depType,
		CreatedAt:   now.UTC(),
	}, nil
}

// SoftDeleted returns the next version of the edge with the delete flag set.
func (e DependencyEdge) SoftDeleted(now time.Time) DependencyEdge {
	next := e
	next.Deleted = true
	next.CreatedAt = now.UTC()
	next.Seq = 0
	return next
}

// IsValidDepType reports whether the dependency type is supported.
func IsValidDepType(depType DepType) bool {
	return slices.Contains(validDepTypes, depType)
}

// CountActiveBlockers counts current edges that are not deleted and originate from workItemID.
func CountActiveBlockers(workItemID string, edges []DependencyEdge) int {
	count := 0
	for _, edge := range edges {
		if edge.Deleted || edge.WorkItemID != workItemID {
			continue
		}
		count++
	}
	return count
}
