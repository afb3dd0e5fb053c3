package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/metricops/internal/adapters/storage/memlog"
	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// newTestAdapter builds an adapter over an in-memory record log with deterministic ids.
func newTestAdapter(t *testing.T) *AppServiceAdapter {
	t.Helper()
	n := 0
	now := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	svc := app.NewService(memlog.New(), func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time {
		now = now.Add(time.Second)
		return now
	}, app.ServiceConfig{})
	return NewAppServiceAdapter(svc)
}

// TestAdapterResolvesActorFromTupleOrContext verifies explicit identity wins over context identity.
func TestAdapterResolvesActorFromTupleOrContext(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := app.WithActor(context.Background(), domain.Actor{ID: "ctx-user", Role: domain.RoleLead})

	fromCtx, err := adapter.CreateWorkItem(ctx, CreateWorkItemRequest{Board: "requests", Type: "ask", Title: "Churn"})
	if err != nil {
		t.Fatalf("CreateWorkItem(ctx actor) error = %v", err)
	}
	if fromCtx.OwnerUserID != "ctx-user" {
		t.Fatalf("expected context actor as owner, got %q", fromCtx.OwnerUserID)
	}

	explicit, err := adapter.CreateWorkItem(ctx, CreateWorkItemRequest{
		Board: "requests",
		Type:  "ask",
		Title: "Retention",
		Actor: ActorTuple{ID: "tuple-user"},
	})
	if err != nil {
		t.Fatalf("CreateWorkItem(tuple actor) error = %v", err)
	}
	if explicit.OwnerUserID != "tuple-user" {
		t.Fatalf("expected tuple actor as owner, got %q", explicit.OwnerUserID)
	}

	_, err = adapter.CreateWorkItem(context.Background(), CreateWorkItemRequest{Board: "requests", Type: "ask", Title: "x"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	_, err = adapter.CreateWorkItem(context.Background(), CreateWorkItemRequest{
		Board: "requests",
		Type:  "ask",
		Title: "x",
		Actor: ActorTuple{ID: "u1", Role: "owner"},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for unknown role, got %v", err)
	}
}

// TestAdapterErrorMapping verifies engine failures map onto transport sentinels.
func TestAdapterErrorMapping(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	contributor := ActorTuple{ID: "u1"}
	item, err := adapter.CreateWorkItem(ctx, CreateWorkItemRequest{Board: "metric_factory", Type: "metric", Title: "GMV", Actor: contributor})
	if err != nil {
		t.Fatalf("CreateWorkItem() error = %v", err)
	}

	cases := []struct {
		name        string
		run         func() error
		want        error
		wantMessage string
	}{
		{
			name: "gate",
			run: func() error {
				_, err := adapter.MoveStage(ctx, MoveStageRequest{WorkItemID: item.ID, ToStage: "Spec Approved", Actor: contributor})
				return err
			},
			want:        ErrGateNotSatisfied,
			wantMessage: "Transition requires spec_approval",
		},
		{
			name: "skip",
			run: func() error {
				_, err := adapter.MoveStage(ctx, MoveStageRequest{WorkItemID: item.ID, ToStage: "Source Mapped", Actor: contributor})
				return err
			},
			want:        ErrRuleViolation,
			wantMessage: "Can only move one stage forward at a time",
		},
		{
			name: "terminal status",
			run: func() error {
				_, err := adapter.SetStatus(ctx, SetStatusRequest{WorkItemID: item.ID, Status: "done", Actor: contributor})
				return err
			},
			want:        ErrRuleViolation,
			wantMessage: "Done only allowed at final stage",
		},
		{
			name: "unknown board",
			run: func() error {
				_, err := adapter.CreateWorkItem(ctx, CreateWorkItemRequest{Board: "finance", Type: "t", Title: "x", Actor: contributor})
				return err
			},
			want:        ErrInvalidRequest,
			wantMessage: "Unknown board finance",
		},
		{
			name: "missing item",
			run: func() error {
				_, err := adapter.GetWorkItem(ctx, "nope")
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "viewer",
			run: func() error {
				_, err := adapter.Assign(ctx, AssignRequest{WorkItemID: item.ID, OwnerUserID: "u2", Actor: ActorTuple{ID: "v", Role: "viewer"}})
				return err
			},
			want: ErrForbidden,
		},
		{
			name: "recompute without actor",
			run: func() error {
				_, err := adapter.Recompute(ctx, RecomputeRequest{WorkItemID: item.ID})
				return err
			},
			want: ErrUnauthenticated,
		},
		{
			name: "bad due date",
			run: func() error {
				_, err := adapter.CreateWorkItem(ctx, CreateWorkItemRequest{Board: "requests", Type: "t", Title: "x", DueAt: "friday", Actor: contributor})
				return err
			},
			want: ErrInvalidRequest,
		},
		{
			name: "bad list filter",
			run: func() error {
				_, err := adapter.ListWorkItems(ctx, ListWorkItemsRequest{Status: "stuck"})
				return err
			},
			want: ErrInvalidRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.wantMessage != "" && Message(err) != tc.wantMessage {
				t.Fatalf("Message() = %q, want %q", Message(err), tc.wantMessage)
			}
		})
	}
}

// TestAdapterApprovalFlow verifies approval results carry the refreshed work item.
func TestAdapterApprovalFlow(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()
	lead := ActorTuple{ID: "lead", Role: "lead"}
	item, err := adapter.CreateWorkItem(ctx, CreateWorkItemRequest{Board: "metric_factory", Type: "metric", Title: "GMV", Actor: lead})
	if err != nil {
		t.Fatalf("CreateWorkItem() error = %v", err)
	}
	created, err := adapter.CreateApproval(ctx, CreateApprovalRequest{
		WorkItemID:         item.ID,
		Gate:               "SPEC_APPROVAL",
		RequiredFromUserID: "lead",
		Actor:              lead,
	})
	if err != nil {
		t.Fatalf("CreateApproval() error = %v", err)
	}
	if !created.WorkItem.NeedsApproval {
		t.Fatal("expected work item to need approval")
	}
	decided, err := adapter.DecideApproval(ctx, DecideApprovalRequest{ApprovalID: created.Approval.ID, Status: "approved", Actor: lead})
	if err != nil {
		t.Fatalf("DecideApproval() error = %v", err)
	}
	if decided.WorkItem.NeedsApproval || decided.Approval.Status != domain.ApprovalApproved {
		t.Fatalf("unexpected decision result %#v", decided)
	}
	moved, err := adapter.MoveStage(ctx, MoveStageRequest{WorkItemID: item.ID, ToStage: "Spec Approved", Actor: lead})
	if err != nil {
		t.Fatalf("MoveStage() error = %v", err)
	}
	if moved.Stage != "Spec Approved" {
		t.Fatalf("stage = %q, want Spec Approved", moved.Stage)
	}
}

// TestUnconfiguredAdapterFailsClosed verifies nil services never panic.
func TestUnconfiguredAdapterFailsClosed(t *testing.T) {
	var adapter *AppServiceAdapter
	if _, err := adapter.GetWorkItem(context.Background(), "w1"); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if got := len(adapter.ListBoards(context.Background())); got != 4 {
		t.Fatalf("expected static boards from nil adapter, got %d", got)
	}
}
