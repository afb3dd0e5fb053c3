package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewWorkItemDefaultsAndValidation(t *testing.T) {
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	item, err := NewWorkItem(WorkItemInput{
		ID:              "w1",
		Board:           BoardRequests,
		Type:            "metric_request",
		Title:           "  Weekly revenue  ",
		OwnerUserID:     "u1",
		RequesterUserID: "u1",
	}, now)
	if err != nil {
		t.Fatalf("NewWorkItem() error = %v", err)
	}
	if item.Stage != "Intake" || item.Status != StatusOpen {
		t.Fatalf("unexpected stage/status %q/%q", item.Stage, item.Status)
	}
	if item.Title != "Weekly revenue" {
		t.Fatalf("expected trimmed title, got %q", item.Title)
	}
	if item.Priority != PriorityP2 || item.BusinessArea != DefaultBusinessArea {
		t.Fatalf("unexpected defaults priority=%q area=%q", item.Priority, item.BusinessArea)
	}
	if item.BlockerCount != 0 || item.NeedsApproval {
		t.Fatalf("unexpected derived fields %#v", item)
	}

	cases := []struct {
		name string
		in   WorkItemInput
		want error
	}{
		{"missing id", WorkItemInput{Board: BoardRequests, Type: "t", Title: "x", OwnerUserID: "u", RequesterUserID: "u"}, ErrInvalidID},
		{"unknown board", WorkItemInput{ID: "w", Board: "nope", Type: "t", Title: "x", OwnerUserID: "u", RequesterUserID: "u"}, ErrUnknownBoard},
		{"missing title", WorkItemInput{ID: "w", Board: BoardRequests, Type: "t", OwnerUserID: "u", RequesterUserID: "u"}, ErrInvalidTitle},
		{"missing type", WorkItemInput{ID: "w", Board: BoardRequests, Title: "x", OwnerUserID: "u", RequesterUserID: "u"}, ErrInvalidType},
		{"bad priority", WorkItemInput{ID: "w", Board: BoardRequests, Type: "t", Title: "x", Priority: "urgent", OwnerUserID: "u", RequesterUserID: "u"}, ErrInvalidPriority},
		{"bad sla", WorkItemInput{ID: "w", Board: BoardRequests, Type: "t", Title: "x", SLAHours: intPtr(0), OwnerUserID: "u", RequesterUserID: "u"}, ErrInvalidSLAHours},
		{"missing owner", WorkItemInput{ID: "w", Board: BoardRequests, Type: "t", Title: "x", RequesterUserID: "u"}, ErrInvalidActor},
	}
	for _, tc := range cases {
		if _, err := NewWorkItem(tc.in, now); !errors.Is(err, tc.want) {
			t.Fatalf("%s: NewWorkItem() error = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestWorkItemNextCopiesForward(t *testing.T) {
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	sla := 24
	due := now.Add(48 * time.Hour)
	item, err := NewWorkItem(WorkItemInput{
		ID:              "w1",
		Board:           BoardMetricFactory,
		Type:            "pipeline",
		Title:           "Orders",
		OwnerUserID:     "u1",
		RequesterUserID: "u2",
		DueAt:           &due,
		SLAHours:        &sla,
	}, now)
	if err != nil {
		t.Fatalf("NewWorkItem() error = %v", err)
	}
	item.Seq = 7
	item.BlockerCount = 2

	later := now.Add(time.Hour)
	next := item.Next(later)
	next.MoveTo("Spec Approved")

	if next.Seq != 0 {
		t.Fatalf("expected cleared seq, got %d", next.Seq)
	}
	if !next.CreatedAt.Equal(item.CreatedAt) || !next.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected timestamps created=%v updated=%v", next.CreatedAt, next.UpdatedAt)
	}
	if next.BlockerCount != 2 || next.OwnerUserID != "u1" || next.RequesterUserID != "u2" {
		t.Fatalf("expected fields to carry forward, got %#v", next)
	}
	*next.SLAHours = 1
	if *item.SLAHours != 24 {
		t.Fatal("expected Next() to deep-copy sla hours")
	}
	if item.Stage != "Spec Drafted" {
		t.Fatalf("expected previous version unchanged, got stage %q", item.Stage)
	}
}

func TestWorkItemMutators(t *testing.T) {
	item := WorkItem{Board: BoardRequests, Stage: "Closed"}
	if err := item.SetStatus("DONE"); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if item.Status != StatusDone {
		t.Fatalf("status = %q, want done", item.Status)
	}
	if err := item.SetStatus("finished"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if !item.IsAtFinalStage() {
		t.Fatal("expected Closed to be final stage for requests")
	}
	if err := item.AssignOwner(" "); !errors.Is(err, ErrInvalidActor) {
		t.Fatalf("expected ErrInvalidActor, got %v", err)
	}
	item.SetBlockerCount(-3)
	if item.BlockerCount != 0 || item.IsBlocked() {
		t.Fatalf("expected negative blocker count clamped to 0, got %d", item.BlockerCount)
	}
}

func TestDependencyEdgeLifecycle(t *testing.T) {
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	if _, err := NewDependencyEdge("d1", "w1", "w1", DepTypeBlocks, now); !errors.Is(err, ErrSelfDependency) {
		t.Fatalf("expected ErrSelfDependency, got %v", err)
	}
	if _, err := NewDependencyEdge("d1", "w1", "w2", "whenever", now); !errors.Is(err, ErrInvalidDepType) {
		t.Fatalf("expected ErrInvalidDepType, got %v", err)
	}
	a, err := NewDependencyEdge("d1", "w1", "w2", DepTypeBlocks, now)
	if err != nil {
		t.Fatalf("NewDependencyEdge() error = %v", err)
	}
	b, err := NewDependencyEdge("d2", "w1", "w3", DepTypeDataNeeded, now)
	if err != nil {
		t.Fatalf("NewDependencyEdge() error = %v", err)
	}
	other, err := NewDependencyEdge("d3", "w9", "w1", DepTypeBlocks, now)
	if err != nil {
		t.Fatalf("NewDependencyEdge() error = %v", err)
	}
	if got := CountActiveBlockers("w1", []DependencyEdge{a, b, other}); got != 2 {
		t.Fatalf("CountActiveBlockers() = %d, want 2", got)
	}
	deleted := a.SoftDeleted(now.Add(time.Minute))
	if !deleted.Deleted || deleted.ID != a.ID || a.Deleted {
		t.Fatalf("unexpected soft delete result %#v (orig %#v)", deleted, a)
	}
	if got := CountActiveBlockers("w1", []DependencyEdge{deleted, b, other}); got != 1 {
		t.Fatalf("CountActiveBlockers() = %d, want 1", got)
	}
}

func TestApprovalDecide(t *testing.T) {
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	if _, err := NewApproval("a1", "w1", "launch_approval", "u2", now); !errors.Is(err, ErrInvalidGate) {
		t.Fatalf("expected ErrInvalidGate, got %v", err)
	}
	pending, err := NewApproval("a1", "w1", GateSpecApproval, "u2", now)
	if err != nil {
		t.Fatalf("NewApproval() error = %v", err)
	}
	if !pending.IsPending() {
		t.Fatalf("expected pending, got %q", pending.Status)
	}
	if _, err := pending.Decide(ApprovalPending, "", now); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
	decided, err := pending.Decide(ApprovalApproved, " looks good ", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decided.DecidedAt == nil || decided.DecisionNote != "looks good" || decided.ID != pending.ID {
		t.Fatalf("unexpected decided approval %#v", decided)
	}
	if !HasApprovedGate(GateSpecApproval, []Approval{decided}) {
		t.Fatal("expected approved gate")
	}
	if HasApprovedGate(GateReconcileApproval, []Approval{decided}) {
		t.Fatal("expected other gate not approved")
	}
	if got := CountPendingApprovals([]Approval{pending, decided}); got != 1 {
		t.Fatalf("CountPendingApprovals() = %d, want 1", got)
	}
}

func TestEventPayloadKeepsOrder(t *testing.T) {
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)
	event, err := NewEvent("e1", "w1", "u1", EventStageChanged, Pairs("from", "Intake", "to", "Clarify", "dangling"), now)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if got := event.Keys(); len(got) != 2 || got[0] != "from" || got[1] != "to" {
		t.Fatalf("Keys() = %#v", got)
	}
	if v, ok := event.Value("to"); !ok || v != "Clarify" {
		t.Fatalf("Value(to) = %q, %v", v, ok)
	}
	if _, err := NewEvent("e1", "w1", "", EventCreated, nil, now); !errors.Is(err, ErrInvalidActor) {
		t.Fatalf("expected ErrInvalidActor, got %v", err)
	}
	if got := Excerpt("héllo world", 5); got != "héllo" {
		t.Fatalf("Excerpt() = %q", got)
	}
}

func TestNewActor(t *testing.T) {
	actor, err := NewActor(" u1 ", "")
	if err != nil {
		t.Fatalf("NewActor() error = %v", err)
	}
	if actor.ID != "u1" || actor.Role != RoleContributor || actor.IsAdmin() {
		t.Fatalf("unexpected actor %#v", actor)
	}
	admin, err := NewActor("root", "ADMIN")
	if err != nil || !admin.IsAdmin() {
		t.Fatalf("expected admin actor, got %#v err=%v", admin, err)
	}
	viewer, _ := NewActor("v", RoleViewer)
	if viewer.CanMutate() {
		t.Fatal("expected viewer to be read-only")
	}
	if _, err := NewActor("u", "owner"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func intPtr(v int) *int {
	return &v
}
