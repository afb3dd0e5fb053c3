package domain

import (
	"slices"
	"strings"
)

// Role classifies what an actor may do.
type Role string

// Role values.
const (
	RoleAdmin       Role = "admin"
	RoleLead        Role = "lead"
	RoleContributor Role = "contributor"
	RoleViewer      Role = "viewer"
)

var validRoles = []Role{RoleAdmin, RoleLead, RoleContributor, RoleViewer}

// Actor is the resolved caller identity attached to every mutation.
type Actor struct {
	ID   string `json:"user_id"`
	Role Role   `json:"role"`
}

// NewActor normalizes and validates an actor. An empty role defaults to contributor.
func NewActor(id string, role Role) (Actor, error) {
	id = strings.TrimSpace(id)
	role = Role(strings.TrimSpace(strings.ToLower(string(role))))
	if id == "" {
		return Actor{}, ErrInvalidActor
	}
	if role == "" {
		role = RoleContributor
	}
	if !slices.Contains(validRoles, role) {
		return Actor{}, ErrInvalidRole
	}
	return Actor{ID: id, Role: role}, nil
}

// IsAdmin reports whether the actor holds the elevated administrative role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanMutate reports whether the actor may change workflow state.
func (a Actor) CanMutate() bool {
	return a.Role != RoleViewer
}
