// Package logtest holds behaviour checks shared by every app.RecordLog implementation.
package logtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// Factory builds an empty record log for one subtest.
type Factory func(t *testing.T) app.RecordLog

// Run exercises the record log contract against logs built by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(*testing.T, app.RecordLog)
	}{
		{"work item compare and append", testWorkItemCompareAndAppend},
		{"work item history and filter", testWorkItemListing},
		{"dependency current projection", testDependencyProjection},
		{"approval current projection", testApprovalProjection},
		{"events newest first", testEventsNewestFirst},
		{"comments and artifacts", testCommentsAndArtifacts},
		{"missing ids", testMissingIDs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, factory(t))
		})
	}
}

var baseTime = time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)

// NewItem builds a valid first work item version for id on board.
func NewItem(t *testing.T, id string, board domain.Board, at time.Time) domain.WorkItem {
	t.Helper()
	item, err := domain.NewWorkItem(domain.WorkItemInput{
		ID:              id,
		Board:           board,
		Type:            "metric_request",
		Title:           "Item " + id,
		Description:     "about " + id,
		OwnerUserID:     "owner-" + id,
		RequesterUserID: "req-" + id,
	}, at)
	require.NoError(t, err)
	return item
}

func testWorkItemCompareAndAppend(t *testing.T, log app.RecordLog) {
	ctx := context.Background()
	first, err := log.AppendWorkItem(ctx, NewItem(t, "w1", domain.BoardRequests, baseTime), 0)
	require.NoError(t, err)
	require.Positive(t, first.Seq)

	_, err = log.AppendWorkItem(ctx, NewItem(t, "w1", domain.BoardRequests, baseTime), 0)
	require.ErrorIs(t, err, app.ErrConflict)

	next := first.Next(baseTime.Add(time.Minute))
	next.MoveTo("Clarify")
	second, err := log.AppendWorkItem(ctx, next, first.Seq)
	require.NoError(t, err)
	require.Greater(t, second.Seq, first.Seq)

	stale := first.Next(baseTime.Add(2 * time.Minute))
	stale.MoveTo("Intake")
	_, err = log.AppendWorkItem(ctx, stale, first.Seq)
	require.ErrorIs(t, err, app.ErrConflict)

	current, err := log.CurrentWorkItem(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "Clarify", current.Stage)
	require.Equal(t, second.Seq, current.Seq)
	require.True(t, current.CreatedAt.Equal(first.CreatedAt))
}

func testWorkItemListing(t *testing.T, log app.RecordLog) {
	ctx := context.Background()
	a, err := log.AppendWorkItem(ctx, NewItem(t, "a", domain.BoardRequests, baseTime), 0)
	require.NoError(t, err)
	b := NewItem(t, "b", domain.BoardMetricFactory, baseTime.Add(time.Minute))
	b.Title = "Revenue Certification"
	_, err = log.AppendWorkItem(ctx, b, 0)
	require.NoError(t, err)

	blocked := a.Next(baseTime.Add(2 * time.Minute))
	blocked.SetBlockerCount(2)
	_, err = log.AppendWorkItem(ctx, blocked, a.Seq)
	require.NoError(t, err)

	versions, err := log.WorkItemVersions(ctx, "a")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, 0, versions[0].BlockerCount)
	require.Equal(t, 2, versions[1].BlockerCount)

	all, err := log.ListWorkItems(ctx, app.WorkItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].ID, "most recently updated first")

	onlyBlocked, err := log.ListWorkItems(ctx, app.WorkItemFilter{BlockedOnly: true})
	require.NoError(t, err)
	require.Len(t, onlyBlocked, 1)
	require.Equal(t, "a", onlyBlocked[0].ID)

	search, err := log.ListWorkItems(ctx, app.WorkItemFilter{Search: "revenue"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	require.Equal(t, "b", search[0].ID)

	byBoard, err := log.ListWorkItems(ctx, app.WorkItemFilter{Board: domain.BoardMetricFactory, Stage: "Spec Drafted", Status: domain.StatusOpen})
	require.NoError(t, err)
	require.Len(t, byBoard, 1)

	limited, err := log.ListWorkItems(ctx, app.WorkItemFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func testDependencyProjection(t *testing.T, log app.RecordLog) {
	ctx := context.Background()
	edge, err := domain.NewDependencyEdge("d1", "w1", "w2", domain.DepTypeBlocks, baseTime)
	require.NoError(t, err)
	stored, err := log.AppendDependency(ctx, edge)
	require.NoError(t, err)
	require.Positive(t, stored.Seq)

	other, err := domain.NewDependencyEdge("d2", "w3", "w1", domain.DepTypeDataNeeded, baseTime)
	require.NoError(t, err)
	_, err = log.AppendDependency(ctx, other)
	require.NoError(t, err)

	_, err = log.AppendDependency(ctx, stored.SoftDeleted(baseTime.Add(time.Minute)))
	require.NoError(t, err)

	current, err := log.CurrentDependency(ctx, "d1")
	require.NoError(t, err)
	require.True(t, current.Deleted)

	edges, err := log.ListDependencies(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, edges, 2, "one current row per edge, both directions")
	require.Equal(t, []string{"d2", "d1"}, []string{edges[0].ID, edges[1].ID}, "ascending by current seq")
	require.Less(t, edges[0].Seq, edges[1].Seq)
	require.Equal(t, 0, domain.CountActiveBlockers("w1", edges))
	require.Equal(t, 1, domain.CountActiveBlockers("w3", edges))
}

func testApprovalProjection(t *testing.T, log app.RecordLog) {
	ctx := context.Background()
	pending, err := domain.NewApproval("a1", "w1", domain.GateSpecApproval, "lead", baseTime)
	require.NoError(t, err)
	stored, err := log.AppendApproval(ctx, pending)
	require.NoError(t, err)

	second, err := domain.NewApproval("a2", "w2", domain.GateReconcileApproval, "lead", baseTime)
	require.NoError(t, err)
	_, err = log.AppendApproval(ctx, second)
	require.NoError(t, err)

	decided, err := stored.Decide(domain.ApprovalApproved, "ok", baseTime.Add(time.Hour))
	require.NoError(t, err)
	_, err = log.AppendApproval(ctx, decided)
	require.NoError(t, err)

	current, err := log.CurrentApproval(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, domain.ApprovalApproved, current.Status)
	require.NotNil(t, current.DecidedAt)

	approvals, err := log.ListApprovals(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	require.Equal(t, 0, domain.CountPendingApprovals(approvals))

	allPending, err := log.ListPendingApprovals(ctx)
	require.NoError(t, err)
	require.Len(t, allPending, 1)
	require.Equal(t, "a2", allPending[0].ID)
}

func testEventsNewestFirst(t *testing.T, log app.RecordLog) {
	ctx := context.Background()
	for i, eventType := range []domain.EventType{domain.EventCreated, domain.EventStageChanged, domain.EventAssigned} {
		event, err := domain.NewEvent("e"+string(rune('1'+i)), "w1", "u1", eventType, domain.Pairs("k", "v", "z", "y"), baseTime)
		require.NoError(t, err)
		_, err = log.AppendEvent(ctx, event)
		require.NoError(t, err)
	}
	events, err := log.ListEvents(ctx, "w1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventAssigned, events[0].Type)
	require.Equal(t, domain.EventStageChanged, events[1].Type)
	require.Greater(t, events[0].Seq, events[1].Seq)
	require.Equal(t, []string{"k", "z"}, events[0].Keys())

	all, err := log.ListEvents(ctx, "w1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	none, err := log.ListEvents(ctx, "other", 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func testCommentsAndArtifacts(t *testing.T, log app.RecordLog) {
	ctx := context.Background()
	for i, body := range []string{"first", "second", "third"} {
		comment, err := domain.NewComment("c"+string(rune('1'+i)), "w1", "u1", body, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, log.AppendComment(ctx, comment))
	}
	comments, err := log.ListComments(ctx, "w1", 2)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "third", comments[0].Body)

	artifact, err := domain.NewArtifact(domain.ArtifactInput{
		ID:              "art1",
		WorkItemID:      "w1",
		Kind:            domain.ArtifactDashboard,
		Title:           "Revenue",
		URL:             "https://bi.example.com/d/1",
		CreatedByUserID: "u1",
	}, baseTime)
	require.NoError(t, err)
	require.NoError(t, log.AppendArtifact(ctx, artifact))
	artifacts, err := log.ListArtifacts(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	require.Equal(t, "https://bi.example.com/d/1", artifacts[0].URL)
}

func testMissingIDs(t *testing.T, log app.RecordLog) {
	ctx := context.Background()
	_, err := log.CurrentWorkItem(ctx, "missing")
	require.ErrorIs(t, err, app.ErrNotFound)
	_, err = log.WorkItemVersions(ctx, "missing")
	require.ErrorIs(t, err, app.ErrNotFound)
	_, err = log.CurrentDependency(ctx, "missing")
	require.ErrorIs(t, err, app.ErrNotFound)
	_, err = log.CurrentApproval(ctx, "missing")
	require.ErrorIs(t, err, app.ErrNotFound)
}
