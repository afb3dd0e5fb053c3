package domain

import (
	"strings"
	"time"
)

// Comment stores a user note attached to a work item. Comments are append-only.
type Comment struct {
	ID         string    `json:"comment_id"`
	WorkItemID string    `json:"work_id"`
	UserID     string    `json:"user_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewComment constructs a normalized comment.
func NewComment(id, workItemID, userID, body string, now time.Time) (Comment, error) {
	id = strings.TrimSpace(id)
	workItemID = strings.TrimSpace(workItemID)
	userID = strings.TrimSpace(userID)
	body = strings.TrimSpace(body)
	if id == "" || workItemID == "" {
		return Comment{}, ErrInvalidID
	}
	if userID == "" {
		return Comment{}, ErrInvalidActor
	}
	if body == "" {
		return Comment{}, ErrInvalidBody
	}
	return Comment{
		ID:         id,
		WorkItemID: workItemID,
		UserID:     userID,
		Body:       body,
		CreatedAt:  now.UTC(),
	}, nil
}
