package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// EventType tags one audit-trail entry.
type EventType string

// EventType values.
const (
	EventCreated         EventType = "created"
	EventStageChanged    EventType = "stage_changed"
	EventStatusChanged   EventType = "status_changed"
	EventAssigned        EventType = "assigned"
	EventDepAdded        EventType = "dep_added"
	EventDepRemoved      EventType = "dep_removed"
	EventCommentAdded    EventType = "comment_added"
	EventArtifactAdded   EventType = "artifact_added"
	EventApprovalCreated EventType = "approval_created"
	EventApprovalDecided EventType = "approval_decided"
)

// KV is one ordered key/value pair in an event payload.
type KV struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is an immutable audit-trail entry attributed to an actor.
type Event struct {
	ID         string    `json:"event_id"`
	WorkItemID string    `json:"work_id"`
	Type       EventType `json:"event_type"`
	ActorID    string    `json:"actor_user_id"`
	Payload    []KV      `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	Seq        int64     `json:"seq"`
}

// NewEvent constructs an event. The payload order is preserved.
func NewEvent(id, workItemID, actorID string, eventType EventType, payload []KV, now time.Time) (Event, error) {
	id = strings.TrimSpace(id)
	workItemID = strings.TrimSpace(workItemID)
	actorID = strings.TrimSpace(actorID)
	if id == "" || workItemID == "" {
		return Event{}, ErrInvalidID
	}
	if actorID == "" {
		return Event{}, ErrInvalidActor
	}
	if strings.TrimSpace(string(eventType)) == "" {
		return Event{}, ErrInvalidType
	}
	return Event{
		ID:         id,
		WorkItemID: workItemID,
		Type:       eventType,
		ActorID:    actorID,
		Payload:    append([]KV(nil), payload...),
		CreatedAt:  now.UTC(),
	}, nil
}

// Value returns the first payload value for key.
func (e Event) Value(key string) (string, bool) {
	for _, kv := range e.Payload {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys returns payload keys in order.
func (e Event) Keys() []string {
	out := make([]string, 0, len(e.Payload))
	for _, kv := range e.Payload {
		out = append(out, kv.Key)
	}
	return out
}

// Values returns payload values in key order.
func (e Event) Values() []string {
	out := make([]string, 0, len(e.Payload))
	for _, kv := range e.Payload {
		out = append(out, kv.Value)
	}
	return out
}

// Pairs builds an ordered payload from alternating key/value arguments.
// A trailing key without a value is dropped.
func Pairs(keyvals ...string) []KV {
	out := make([]KV, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		out = append(out, KV{Key: keyvals[i], Value: keyvals[i+1]})
	}
	return out
}

// Excerpt truncates s to at most n runes.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
