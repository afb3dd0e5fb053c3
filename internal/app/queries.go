package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hylla/metricops/internal/domain"
)

// WorkDetail is the full read view of one work item.
type WorkDetail struct {
	WorkItem     domain.WorkItem         `json:"work_item"`
	Dependencies []domain.DependencyEdge `json:"dependencies"`
	Approvals    []domain.Approval       `json:"approvals"`
	Artifacts    []domain.Artifact       `json:"artifacts"`
	Comments     []domain.Comment        `json:"comments"`
	Events       []domain.Event          `json:"events"`
}

// StageStatusCount counts current work items sharing board, stage and status.
type StageStatusCount struct {
	Board  domain.Board  `json:"board"`
	Stage  string        `json:"stage"`
	Status domain.Status `json:"status"`
	Count  int           `json:"count"`
}

// PendingApprovalCount counts pending approvals waiting on one user.
type PendingApprovalCount struct {
	RequiredFromUserID string `json:"required_from_user_id"`
	Count              int    `json:"count"`
}

// DailySummary is a status snapshot across all boards.
type DailySummary struct {
	GeneratedAt      time.Time              `json:"generated_at"`
	Counts           []StageStatusCount     `json:"counts"`
	PendingApprovals []PendingApprovalCount `json:"pending_approvals"`
	TopBlocked       []domain.WorkItem      `json:"top_blocked"`
}

// ListBoards returns every board definition.
func (s *Service) ListBoards(context.Context) []domain.BoardDefinition {
	return domain.Boards()
}

// GetWorkItem returns the current version of a work item.
func (s *Service) GetWorkItem(ctx context.Context, workItemID string) (domain.WorkItem, error) {
	return s.log.CurrentWorkItem(ctx, strings.TrimSpace(workItemID))
}

// ListWorkItems lists current work items, most recently updated first.
func (s *Service) ListWorkItems(ctx context.Context, filter WorkItemFilter) ([]domain.WorkItem, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Board != "" {
		filter.Board = domain.NormalizeBoard(filter.Board)
	}
	if filter.Status != "" {
		filter.Status = domain.NormalizeStatus(filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > s.cfg.ListLimit {
		filter.Limit = s.cfg.ListLimit
	}
	return s.log.ListWorkItems(ctx, filter)
}

// History returns every version of a work item in append order.
func (s *Service) History(ctx context.Context, workItemID string) ([]domain.WorkItem, error) {
	return s.log.WorkItemVersions(ctx, strings.TrimSpace(workItemID))
}

// ListEvents returns the newest events of a work item first.
func (s *Service) ListEvents(ctx context.Context, workItemID string, limit int) ([]domain.Event, error) {
	workItemID = strings.TrimSpace(workItemID)
	if _, err := s.log.CurrentWorkItem(ctx, workItemID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.DetailEventLimit
	}
	return s.log.ListEvents(ctx, workItemID, limit)
}

// WorkDetail loads a work item with its active dependencies, approvals,
// artifacts, latest comments and latest events.
func (s *Service) WorkDetail(ctx context.Context, workItemID string) (WorkDetail, error) {
	workItemID = strings.TrimSpace(workItemID)
	item, err := s.log.CurrentWorkItem(ctx, workItemID)
	if err != nil {
		return WorkDetail{}, err
	}

	detail := WorkDetail{WorkItem: item}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		edges, err := s.log.ListDependencies(gctx, workItemID)
		if err != nil {
			return err
		}
		detail.Dependencies = slices.DeleteFunc(edges, func(edge domain.DependencyEdge) bool {
			return edge.Deleted
		})
		return nil
	})
	g.Go(func() error {
		approvals, err := s.log.ListApprovals(gctx, workItemID)
		detail.Approvals = approvals
		return err
	})
	g.Go(func() error {
		artifacts, err := s.log.ListArtifacts(gctx, workItemID)
		detail.Artifacts = artifacts
		return err
	})
	g.Go(func() error {
		comments, err := s.log.ListComments(gctx, workItemID, s.cfg.DetailCommentLimit)
		detail.Comments = comments
		return err
	})
	g.Go(func() error {
		events, err := s.log.ListEvents(gctx, workItemID, s.cfg.DetailEventLimit)
		detail.Events = events
		return err
	})
	if err := g.Wait(); err != nil {
		return WorkDetail{}, err
	}
	return detail, nil
}

// DailySummary counts current work items by board, stage and status, counts
// pending approvals per approver and lists the most blocked items.
func (s *Service) DailySummary(ctx context.Context) (DailySummary, error) {
	var (
		items   []domain.WorkItem
		pending []domain.Approval
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.log.ListWorkItems(gctx, WorkItemFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.log.ListPendingApprovals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return DailySummary{}, err
	}

	return DailySummary{
		GeneratedAt:      s.clock().UTC(),
		Counts:           countByStageStatus(items),
		PendingApprovals: countPendingByApprover(pending),
		TopBlocked:       topBlocked(items, s.cfg.SummaryBlockedLimit),
	}, nil
}

// countByStageStatus groups items and orders groups along the stage graph.
func countByStageStatus(items []domain.WorkItem) []StageStatusCount {
	type key struct {
		board  domain.Board
		stage  string
		status domain.Status
	}
	counts := map[key]int{}
	for _, item := range items {
		counts[key{item.Board, item.Stage, item.Status}]++
	}
	out := make([]StageStatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, StageStatusCount{Board: k.board, Stage: k.stage, Status: k.status, Count: n})
	}
	boardRank := map[domain.Board]int{}
	for i, def := range domain.Boards() {
		boardRank[def.Board] = i
	}
	slices.SortFunc(out, func(a, b StageStatusCount) int {
		if a.Board != b.Board {
			return boardRank[a.Board] - boardRank[b.Board]
		}
		if ai, bi := domain.StageIndex(a.Board, a.Stage), domain.StageIndex(b.Board, b.Stage); ai != bi {
			return ai - bi
		}
		return strings.Compare(string(a.Status), string(b.Status))
	})
	return out
}

// countPendingByApprover orders approvers by pending count, highest first.
func countPendingByApprover(pending []domain.Approval) []PendingApprovalCount {
	counts := map[string]int{}
	for _, approval := range pending {
		if approval.IsPending() {
			counts[approval.RequiredFromUserID]++
		}
	}
	out := make([]PendingApprovalCount, 0, len(counts))
	for userID, n := range counts {
		out = append(out, PendingApprovalCount{RequiredFromUserID: userID, Count: n})
	}
	slices.SortFunc(out, func(a, b PendingApprovalCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.RequiredFromUserID, b.RequiredFromUserID)
	})
	return out
}

// topBlocked returns up to limit blocked items, most blockers first.
func topBlocked(items []domain.WorkItem, limit int) []domain.WorkItem {
	out := make([]domain.WorkItem, 0)
	for _, item := range items {
		if item.IsBlocked() {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b domain.WorkItem) int {
		if a.BlockerCount != b.BlockerCount {
			return b.BlockerCount - a.BlockerCount
		}
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
