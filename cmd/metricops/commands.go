package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hylla/metricops/internal/adapters/server"
	"github.com/hylla/metricops/internal/adapters/server/common"
	"github.com/hylla/metricops/internal/domain"
)

func newServeCommand(rt *cliRuntime) *cobra.Command {
	var httpBind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := server.Config{
				HTTPBind:      rt.cfg.Server.HTTPBind,
				APIEndpoint:   rt.cfg.Server.APIEndpoint,
				MCPEndpoint:   rt.cfg.Server.MCPEndpoint,
				ServerName:    appName,
				ServerVersion: version,
			}
			if httpBind != "" {
				cfg.HTTPBind = httpBind
			}
			rt.logger.Info("server starting", "http_bind", cfg.HTTPBind, "api_endpoint", cfg.APIEndpoint, "mcp_endpoint", cfg.MCPEndpoint, "backend", rt.cfg.Database.Backend)
			err = server.Run(ctx, cfg, server.Dependencies{
				Service: svc,
				Ready:   rt.ready,
				Logger:  rt.logger,
			})
			if err != nil {
				rt.logger.Error("server stopped with error", "err", err)
				return err
			}
			rt.logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "listen address (defaults to server.http_bind)")
	return cmd
}

// pathsView is the resolved location report printed by the paths command.
type pathsView struct {
	App        string `json:"app"`
	DevMode    bool   `json:"dev_mode"`
	ConfigPath string `json:"config_path"`
	DataDir    string `json:"data_dir"`
	DBPath     string `json:"db_path"`
	Backend    string `json:"backend"`
}

func newPathsCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data locations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			view := pathsView{
				App:        appName,
				DevMode:    rt.opts.devMode,
				ConfigPath: rt.configPath,
				DataDir:    rt.paths.DataDir,
				DBPath:     rt.cfg.Database.Path,
				Backend:    string(rt.cfg.Database.Backend),
			}
			return rt.write(view, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "app: %s\ndev_mode: %t\nconfig: %s\ndata_dir: %s\ndb: %s\nbackend: %s\n",
					view.App, view.DevMode, view.ConfigPath, view.DataDir, view.DBPath, view.Backend)
				return err
			})
		},
	}
}

func newBoardsCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List boards with their stages and approval gates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			boards := svc.ListBoards(cmd.Context())
			return rt.write(map[string]any{"boards": boards}, func(w io.Writer) error {
				return writeBoards(w, boards)
			})
		},
	}
}

func newWorkCommand(rt *cliRuntime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Create, inspect, and move work items",
	}
	cmd.AddCommand(
		newWorkCreateCommand(rt),
		newWorkListCommand(rt),
		newWorkShowCommand(rt),
		newWorkMoveCommand(rt),
		newWorkStatusCommand(rt),
		newWorkAssignCommand(rt),
		newWorkRecomputeCommand(rt),
		newWorkHistoryCommand(rt),
		newWorkCommentCommand(rt),
		newWorkArtifactCommand(rt),
	)
	return cmd
}

func newWorkCreateCommand(rt *cliRuntime) *cobra.Command {
	var (
		in       common.CreateWorkItemRequest
		due      string
		slaHours int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work item at the first stage of a board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dueAt, err := parseDue(due, rt.now())
			if err != nil {
				return fmt.Errorf("%w: %w", common.ErrInvalidRequest, err)
			}
			in.DueAt = dueAt
			if cmd.Flags().Changed("sla-hours") {
				in.SLAHours = &slaHours
			}
			in.Actor = rt.actor()

			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			item, err := svc.CreateWorkItem(cmd.Context(), in)
			if err != nil {
				return err
			}
			rt.logger.Debug("work item created", "work_id", item.ID, "board", item.Board)
			return rt.write(item, func(w io.Writer) error {
				return writeWorkItemLine(w, item)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.Board, "board", "", "board: requests, metric_factory, insight_action, ml_genai")
	flags.StringVar(&in.Type, "type", "", "work item type")
	flags.StringVar(&in.Title, "title", "", "work item title")
	flags.StringVar(&in.Description, "description", "", "markdown description")
	flags.StringVar(&in.Priority, "priority", "", "priority p0..p3 (default p2)")
	flags.StringVar(&in.BusinessArea, "business-area", "", "business area (default product)")
	flags.StringVar(&in.OwnerUserID, "owner", "", "owner user id (defaults to the actor)")
	flags.StringVar(&in.RequesterUserID, "requester", "", "requester user id (defaults to the actor)")
	flags.StringVar(&due, "due", "", `due date: RFC3339, YYYY-MM-DD, or phrases like "next friday"`)
	flags.IntVar(&slaHours, "sla-hours", 0, "service level target in hours")
	_ = cmd.MarkFlagRequired("board")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newWorkListCommand(rt *cliRuntime) *cobra.Command {
	var in common.ListWorkItemsRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List current work items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			items, err := svc.ListWorkItems(cmd.Context(), in)
			if err != nil {
				return err
			}
			return rt.write(map[string]any{"items": items}, func(w io.Writer) error {
				return writeWorkItems(w, items)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.Board, "board", "", "filter by board")
	flags.StringVar(&in.Stage, "stage", "", "filter by stage")
	flags.StringVar(&in.Status, "status", "", "filter by status")
	flags.StringVar(&in.OwnerUserID, "owner", "", "filter by owner")
	flags.StringVar(&in.Priority, "priority", "", "filter by priority")
	flags.StringVar(&in.BusinessArea, "business-area", "", "filter by business area")
	flags.StringVar(&in.Search, "q", "", "case-insensitive title/description search")
	flags.BoolVar(&in.BlockedOnly, "blocked", false, "only items with open blockers")
	flags.BoolVar(&in.NeedsApprovalOnly, "needs-approval", false, "only items with pending approvals")
	flags.IntVar(&in.Limit, "limit", 0, "maximum number of items")
	return cmd
}

func newWorkShowCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <work-id>",
		Short: "Show a work item with dependencies, approvals, comments, and events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			detail, err := svc.WorkDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return rt.write(detail, func(w io.Writer) error {
				return writeWorkDetail(w, detail)
			})
		},
	}
}

func newWorkMoveCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "move <work-id> <stage>",
		Short: "Move a work item to another stage of its board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.mutateWorkItem(cmd, func(svc common.WorkflowService) (domain.WorkItem, error) {
				return svc.MoveStage(cmd.Context(), common.MoveStageRequest{
					WorkItemID: args[0],
					ToStage:    args[1],
					Actor:      rt.actor(),
				})
			})
		},
	}
}

func newWorkStatusCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "status <work-id> <status>",
		Short: "Set status: open, blocked, in_review, done, cancelled",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.mutateWorkItem(cmd, func(svc common.WorkflowService) (domain.WorkItem, error) {
				return svc.SetStatus(cmd.Context(), common.SetStatusRequest{
					WorkItemID: args[0],
					Status:     args[1],
					Actor:      rt.actor(),
				})
			})
		},
	}
}

func newWorkAssignCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <work-id> <owner>",
		Short: "Change the owner of a work item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.mutateWorkItem(cmd, func(svc common.WorkflowService) (domain.WorkItem, error) {
				return svc.Assign(cmd.Context(), common.AssignRequest{
					WorkItemID:  args[0],
					OwnerUserID: args[1],
					Actor:       rt.actor(),
				})
			})
		},
	}
}

func newWorkRecomputeCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute <work-id>",
		Short: "Refresh blocker count and needs-approval from current edges and approvals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.mutateWorkItem(cmd, func(svc common.WorkflowService) (domain.WorkItem, error) {
				return svc.Recompute(cmd.Context(), common.RecomputeRequest{WorkItemID: args[0], Actor: rt.actor()})
			})
		},
	}
}

func newWorkHistoryCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "history <work-id>",
		Short: "List every stored version of a work item, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			versions, err := svc.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return rt.write(map[string]any{"versions": versions}, func(w io.Writer) error {
				return writeHistory(w, versions)
			})
		},
	}
}

func newWorkCommentCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <work-id> <body>",
		Short: "Add a comment to a work item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			comment, err := svc.AddComment(cmd.Context(), common.AddCommentRequest{
				WorkItemID: args[0],
				Body:       args[1],
				Actor:      rt.actor(),
			})
			if err != nil {
				return err
			}
			return rt.write(comment, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "comment %s added to %s\n", comment.ID, comment.WorkItemID)
				return err
			})
		},
	}
}

func newWorkArtifactCommand(rt *cliRuntime) *cobra.Command {
	var in common.AddArtifactRequest
	cmd := &cobra.Command{
		Use:   "artifact <work-id>",
		Short: "Link an artifact (doc, dashboard, query, repo, file, ticket_link)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			in.WorkItemID = args[0]
			in.Actor = rt.actor()
			artifact, err := svc.AddArtifact(cmd.Context(), in)
			if err != nil {
				return err
			}
			return rt.write(artifact, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "artifact %s (%s) added to %s\n", artifact.ID, artifact.Kind, artifact.WorkItemID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&in.Kind, "kind", "", "artifact kind")
	cmd.Flags().StringVar(&in.Title, "title", "", "artifact title")
	cmd.Flags().StringVar(&in.URL, "url", "", "absolute http(s) URL")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newDepCommand(rt *cliRuntime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependency edges between work items",
	}

	var depType string
	add := &cobra.Command{
		Use:   "add <work-id> <depends-on-work-id>",
		Short: "Record that a work item depends on another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			result, err := svc.AddDependency(cmd.Context(), common.AddDependencyRequest{
				WorkItemID:      args[0],
				DependsOnWorkID: args[1],
				DepType:         depType,
				Actor:           rt.actor(),
			})
			if err != nil {
				return err
			}
			return rt.write(result, func(w io.Writer) error {
				return writeDependencyResult(w, result)
			})
		},
	}
	add.Flags().StringVar(&depType, "type", string(domain.DepTypeBlocks), "dependency type: blocks, data_needed, approval_needed")

	rm := &cobra.Command{
		Use:   "rm <work-id> <dep-id>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.mutateWorkItem(cmd, func(svc common.WorkflowService) (domain.WorkItem, error) {
				return svc.RemoveDependency(cmd.Context(), common.RemoveDependencyRequest{
					WorkItemID: args[0],
					DepID:      args[1],
					Actor:      rt.actor(),
				})
			})
		},
	}

	cmd.AddCommand(add, rm)
	return cmd
}

func newApprovalCommand(rt *cliRuntime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Request and decide stage-gate approvals",
	}

	var gate, requiredFrom string
	create := &cobra.Command{
		Use:   "create <work-id>",
		Short: "Request an approval for a gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.mutateApproval(cmd, func(svc common.WorkflowService) (common.ApprovalResult, error) {
				return svc.CreateApproval(cmd.Context(), common.CreateApprovalRequest{
					WorkItemID:         args[0],
					Gate:               gate,
					RequiredFromUserID: requiredFrom,
					Actor:              rt.actor(),
				})
			})
		},
	}
	create.Flags().StringVar(&gate, "gate", "", "gate: spec_approval, reconcile_approval, publish_approval")
	create.Flags().StringVar(&requiredFrom, "from", "", "user id whose decision is required")
	_ = create.MarkFlagRequired("gate")
	_ = create.MarkFlagRequired("from")

	var note string
	decide := &cobra.Command{
		Use:   "decide <approval-id> <approved|rejected>",
		Short: "Approve or reject a pending approval",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.mutateApproval(cmd, func(svc common.WorkflowService) (common.ApprovalResult, error) {
				return svc.DecideApproval(cmd.Context(), common.DecideApprovalRequest{
					ApprovalID: args[0],
					Status:     args[1],
					Note:       note,
					Actor:      rt.actor(),
				})
			})
		},
	}
	decide.Flags().StringVar(&note, "note", "", "decision note")

	cmd.AddCommand(create, decide)
	return cmd
}

func newEventsCommand(rt *cliRuntime) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events <work-id>",
		Short: "List audit events for a work item, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			events, err := svc.ListEvents(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return rt.write(map[string]any{"events": events}, func(w io.Writer) error {
				return writeEvents(w, events)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	return cmd
}

func newSummaryCommand(rt *cliRuntime) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Daily snapshot of counts, pending approvals, and blocked work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := rt.workflow()
			if err != nil {
				return err
			}
			summary, err := svc.DailySummary(cmd.Context())
			if err != nil {
				return err
			}
			return rt.write(summary, func(w io.Writer) error {
				return writeSummary(w, summary)
			})
		},
	}
}

// mutateWorkItem runs one work item mutation and prints the refreshed item.
func (rt *cliRuntime) mutateWorkItem(cmd *cobra.Command, mutate func(common.WorkflowService) (domain.WorkItem, error)) error {
	svc, err := rt.workflow()
	if err != nil {
		return err
	}
	item, err := mutate(svc)
	if err != nil {
		rt.logger.Debug("mutation rejected", "command", cmd.CommandPath(), "err", common.Message(err))
		return err
	}
	return rt.write(item, func(w io.Writer) error {
		return writeWorkItemLine(w, item)
	})
}

// mutateApproval runs one approval mutation and prints the approval with its item.
func (rt *cliRuntime) mutateApproval(cmd *cobra.Command, mutate func(common.WorkflowService) (common.ApprovalResult, error)) error {
	svc, err := rt.workflow()
	if err != nil {
		return err
	}
	result, err := mutate(svc)
	if err != nil {
		rt.logger.Debug("mutation rejected", "command", cmd.CommandPath(), "err", common.Message(err))
		return err
	}
	return rt.write(result, func(w io.Writer) error {
		return writeApprovalResult(w, result)
	})
}
