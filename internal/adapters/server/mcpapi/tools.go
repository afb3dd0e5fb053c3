package mcpapi

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/metricops/internal/adapters/server/common"
)

// registerBoardTools registers the board catalog tool.
func registerBoardTools(srv *mcpserver.MCPServer, service common.WorkflowService) {
	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"list_boards",
			mcp.WithDescription("List boards with their ordered stages, final stage and approval gates."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult("list_boards", map[string]any{
				"boards": service.ListBoards(ctx),
			})
		},
	)
}

// registerWorkItemTools registers work item create, read and mutation tools.
func registerWorkItemTools(srv *mcpserver.MCPServer, service common.WorkflowService) {
	srv.AddTool(
		mcp.NewTool(toolPrefix+"create_work_item", withActorArgs(
			mcp.WithDescription("Create a work item on the entry stage of a board."),
			mcp.WithString("board", mcp.Required(), mcp.Description("Board name"), mcp.Enum("requests", "metric_factory", "insight_action", "ml_genai")),
			mcp.WithString("type", mcp.Required(), mcp.Description("Free-form work type")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short title")),
			mcp.WithString("description", mcp.Description("Markdown description")),
			mcp.WithString("priority", mcp.Description("Priority"), mcp.Enum("p0", "p1", "p2", "p3")),
			mcp.WithString("business_area", mcp.Description("Business area (defaults to product)")),
			mcp.WithString("owner_user_id", mcp.Description("Owner (defaults to actor)")),
			mcp.WithString("requester_user_id", mcp.Description("Requester (defaults to actor)")),
			mcp.WithString("due_at", mcp.Description("Optional RFC3339 due timestamp")),
			mcp.WithNumber("sla_hours", mcp.Description("Optional positive SLA in hours")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			board, err := req.RequireString("board")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workType, err := req.RequireString("type")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			title, err := req.RequireString("title")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			in := common.CreateWorkItemRequest{
				Board:           board,
				Type:            workType,
				Title:           title,
				Description:     req.GetString("description", ""),
				Priority:        req.GetString("priority", ""),
				BusinessArea:    req.GetString("business_area", ""),
				OwnerUserID:     req.GetString("owner_user_id", ""),
				RequesterUserID: req.GetString("requester_user_id", ""),
				DueAt:           req.GetString("due_at", ""),
				Actor:           actor,
			}
			if sla := req.GetInt("sla_hours", 0); sla != 0 {
				in.SLAHours = &sla
			}
			item, err := service.CreateWorkItem(ctx, in)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_work_item", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"get_work_item",
			mcp.WithDescription("Return a work item with active dependencies, approvals, artifacts, recent comments and recent events."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Work item identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			detail, err := service.WorkDetail(ctx, workID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_work_item", detail)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"list_work_items",
			mcp.WithDescription("List current work items, most recently updated first."),
			mcp.WithString("board", mcp.Description("Filter by board")),
			mcp.WithString("stage", mcp.Description("Filter by stage")),
			mcp.WithString("status", mcp.Description("Filter by status")),
			mcp.WithString("owner_user_id", mcp.Description("Filter by owner")),
			mcp.WithString("priority", mcp.Description("Filter by priority")),
			mcp.WithString("business_area", mcp.Description("Filter by business area")),
			mcp.WithBoolean("blocked_only", mcp.Description("Only items with active blockers")),
			mcp.WithBoolean("needs_approval_only", mcp.Description("Only items with pending approvals")),
			mcp.WithString("query", mcp.Description("Case-insensitive title/description search")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			items, err := service.ListWorkItems(ctx, common.ListWorkItemsRequest{
				Board:             req.GetString("board", ""),
				Stage:             req.GetString("stage", ""),
				Status:            req.GetString("status", ""),
				OwnerUserID:       req.GetString("owner_user_id", ""),
				Priority:          req.GetString("priority", ""),
				BusinessArea:      req.GetString("business_area", ""),
				BlockedOnly:       req.GetBool("blocked_only", false),
				NeedsApprovalOnly: req.GetBool("needs_approval_only", false),
				Search:            req.GetString("query", ""),
				Limit:             req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_work_items", map[string]any{"items": items})
		},
	)

	srv.AddTool(
		mcp.NewTool(toolPrefix+"move_stage", withActorArgs(
			mcp.WithDescription("Move a work item to a stage. Forward moves go one stage at a time; gated stages need an approved approval."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Work item identifier")),
			mcp.WithString("to_stage", mcp.Required(), mcp.Description("Destination stage name")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			toStage, err := req.RequireString("to_stage")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := service.MoveStage(ctx, common.MoveStageRequest{WorkItemID: workID, ToStage: toStage, Actor: actor})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_stage", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(toolPrefix+"set_status", withActorArgs(
			mcp.WithDescription("Set the lifecycle status of a work item. done is only allowed at the final stage."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Work item identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("New status"), mcp.Enum("open", "blocked", "in_review", "done", "cancelled")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := service.SetStatus(ctx, common.SetStatusRequest{WorkItemID: workID, Status: status, Actor: actor})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_status", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(toolPrefix+"assign", withActorArgs(
			mcp.WithDescription("Assign a work item to a new owner."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Work item identifier")),
			mcp.WithString("owner_user_id", mcp.Required(), mcp.Description("New owner")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			owner, err := req.RequireString("owner_user_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := service.Assign(ctx, common.AssignRequest{WorkItemID: workID, OwnerUserID: owner, Actor: actor})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("assign", item)
		},
	)

	srv.AddTool(
		mcp.NewTool(toolPrefix+"recompute", withActorArgs(
			mcp.WithDescription("Refresh the blocker count and needs-approval flag of a work item from its edges and approvals."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Work item identifier")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := service.Recompute(ctx, common.RecomputeRequest{WorkItemID: workID, Actor: actor})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("recompute", item)
		},
	)
}

// registerDependencyTools registers dependency add and remove tools.
func registerDependencyTools(srv *mcpserver.MCPServer, service common.WorkflowService) {
	srv.AddTool(
		mcp.NewTool(toolPrefix+"add_dependency", withActorArgs(
			mcp.WithDescription("Record that a work item depends on another and refresh its blocker count."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Dependent work item")),
			mcp.WithString("depends_on_work_id", mcp.Required(), mcp.Description("Work item depended upon")),
			mcp.WithString("dep_type", mcp.Description("Dependency type"), mcp.Enum("blocks", "data_needed", "approval_needed")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			dependsOn, err := req.RequireString("depends_on_work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := service.AddDependency(ctx, common.AddDependencyRequest{
				WorkItemID:      workID,
				DependsOnWorkID: dependsOn,
				DepType:         req.GetString("dep_type", ""),
				Actor:           actor,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_dependency", result)
		},
	)

	srv.AddTool(
		mcp.NewTool(toolPrefix+"remove_dependency", withActorArgs(
			mcp.WithDescription("Soft-delete one dependency edge and refresh the blocker count."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Dependent work item")),
			mcp.WithString("dep_id", mcp.Required(), mcp.Description("Dependency edge identifier")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			depID, err := req.RequireString("dep_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			item, err := service.RemoveDependency(ctx, common.RemoveDependencyRequest{WorkItemID: workID, DepID: depID, Actor: actor})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("remove_dependency", item)
		},
	)
}

// registerApprovalTools registers approval request and decision tools.
func registerApprovalTools(srv *mcpserver.MCPServer, service common.WorkflowService) {
	srv.AddTool(
		mcp.NewTool(toolPrefix+"create_approval", withActorArgs(
			mcp.WithDescription("Request an approval for a gate from one user."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Work item identifier")),
			mcp.WithString("gate", mcp.Required(), mcp.Description("Gate name"), mcp.Enum("spec_approval", "reconcile_approval", "publish_approval")),
			mcp.WithString("required_from_user_id", mcp.Required(), mcp.Description("Approver")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			gate, err := req.RequireString("gate")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			approver, err := req.RequireString("required_from_user_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := service.CreateApproval(ctx, common.CreateApprovalRequest{
				WorkItemID:         workID,
				Gate:               gate,
				RequiredFromUserID: approver,
				Actor:              actor,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_approval", result)
		},
	)

	srv.AddTool(
		mcp.NewTool(toolPrefix+"decide_approval", withActorArgs(
			mcp.WithDescription("Approve or reject an approval request."),
			mcp.WithString("approval_id", mcp.Required(), mcp.Description("Approval identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Decision"), mcp.Enum("approved", "rejected")),
			mcp.WithString("note", mcp.Description("Optional decision note")),
		)...),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			actor, err := actorFromRequest(req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			approvalID, err := req.RequireString("approval_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			result, err := service.DecideApproval(ctx, common.DecideApprovalRequest{
				ApprovalID: approvalID,
				Status:     status,
				Note:       req.GetString("note", ""),
				Actor:      actor,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("decide_approval", result)
		},
	)
}

// registerEventTools registers the audit trail tool.
func registerEventTools(srv *mcpserver.MCPServer, service common.WorkflowService) {
	srv.AddTool(
		mcp.NewTool(
			toolPrefix+"list_events",
			mcp.WithDescription("List audit events for a work item, newest first."),
			mcp.WithString("work_id", mcp.Required(), mcp.Description("Work item identifier")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default 100)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			workID, err := req.RequireString("work_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			events, err := service.ListEvents(ctx, workID, req.GetInt("limit", 0))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_events", map[string]any{"events": events})
		},
	)
}
