// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/metricops/internal/adapters/server/common"
)

// toolPrefix namespaces every registered tool name.
const toolPrefix = "metricops."

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler serves the workflow tools over stateless streamable HTTP.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler registers every workflow tool on a fresh MCP server.
func NewHandler(cfg Config, service common.WorkflowService) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("workflow service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerBoardTools(mcpSrv, service)
	registerWorkItemTools(mcpSrv, service)
	registerDependencyTools(mcpSrv, service)
	registerApprovalTools(mcpSrv, service)
	registerEventTools(mcpSrv, service)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

func normalizeConfig(cfg Config) Config {
	orDefault := func(v, fallback string) string {
		if v = strings.TrimSpace(v); v == "" {
			return fallback
		}
		return v
	}
	cfg.ServerName = orDefault(cfg.ServerName, "metricops")
	cfg.ServerVersion = orDefault(cfg.ServerVersion, "dev")
	cfg.EndpointPath = "/" + strings.Trim(orDefault(cfg.EndpointPath, "/mcp"), "/")
	return cfg
}

// withActorArgs appends the actor arguments shared by every mutating tool.
func withActorArgs(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts,
		mcp.WithString("actor_id", mcp.Required(), mcp.Description("Acting user identifier")),
		mcp.WithString("actor_role", mcp.Description("Acting user role"), mcp.Enum("admin", "lead", "contributor", "viewer")),
	)
}

// actorFromRequest reads the actor tuple from tool arguments.
func actorFromRequest(req mcp.CallToolRequest) (common.ActorTuple, error) {
	actorID, err := req.RequireString("actor_id")
	if err != nil {
		return common.ActorTuple{}, err
	}
	return common.ActorTuple{
		ID:   actorID,
		Role: req.GetString("actor_role", ""),
	}, nil
}

// jsonResult encodes one successful tool payload.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError reports err as a tool error prefixed with its class name.
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("internal_error: unknown error")
	}
	class := common.ErrorClass(err)
	if class == "" {
		class = "internal_error"
	}
	return mcp.NewToolResultError(class + ": " + common.Message(err))
}
