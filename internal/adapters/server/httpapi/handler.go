// Package httpapi serves the workflow service as JSON over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/hylla/metricops/internal/adapters/server/common"
	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// maxRequestBodyBytes caps one request body.
const maxRequestBodyBytes int64 = 1 << 20

// Identity headers read on every request.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Logger receives request log lines. *charmLog.Logger satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.WorkflowService
	logger  Logger
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the workflow service.
// A nil logger falls back to the process-wide charm logger.
func NewHandler(service common.WorkflowService, logger Logger) *Handler {
	if logger == nil {
		logger = charmLog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// ServeHTTP attaches the caller identity, routes the request and logs its outcome.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		keyvals := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(started)}
		if rec.status >= http.StatusInternalServerError {
			h.logger.Error("api request failed", keyvals...)
			return
		}
		h.logger.Debug("api request", keyvals...)
	}()

	if h.service == nil {
		writeJSONError(rec, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "workflow service is not configured",
		})
		return
	}
	ctx, err := withRequestActor(r)
	if err != nil {
		writeErrorFrom(rec, err)
		return
	}
	h.route(rec, r.WithContext(ctx))
}

// route dispatches one request by path segments.
func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	segments := strings.Split(path, "/")
	switch {
	case path == "boards":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"boards": h.service.ListBoards(r.Context())})
	case path == "work":
		switch r.Method {
		case http.MethodGet:
			h.handleListWorkItems(w, r)
		case http.MethodPost:
			h.handleCreateWorkItem(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case path == "summary/daily":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleDailySummary(w, r)
	case len(segments) == 2 && segments[0] == "work" && segments[1] != "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleWorkDetail(w, r, segments[1])
	case len(segments) == 3 && segments[0] == "work" && segments[1] != "":
		h.routeWorkAction(w, r, segments[1], segments[2])
	case len(segments) == 4 && segments[0] == "work" && segments[1] != "" && segments[2] == "deps" && segments[3] != "":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w, http.MethodDelete)
			return
		}
		h.handleRemoveDependency(w, r, segments[1], segments[3])
	case len(segments) == 3 && segments[0] == "approval" && segments[1] != "" && segments[2] == "decide":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleDecideApproval(w, r, segments[1])
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// routeWorkAction dispatches `/work/{id}/{action}`.
func (h *Handler) routeWorkAction(w http.ResponseWriter, r *http.Request, id, action string) {
	switch action {
	case "history", "events":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		if action == "history" {
			h.handleHistory(w, r, id)
		} else {
			h.handleListEvents(w, r, id)
		}
		return
	case "recompute":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		item, err := h.service.Recompute(r.Context(), common.RecomputeRequest{WorkItemID: id})
		respond(w, item, err)
		return
	case "move", "status", "assign", "deps", "comment", "artifact", "approval":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
	default:
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "no route for work action " + strconv.Quote(action)})
		return
	}

	svc := h.service
	switch action {
	case "move":
		postAction(w, r, http.StatusOK, func(req *common.MoveStageRequest) { req.WorkItemID = id }, svc.MoveStage)
	case "status":
		postAction(w, r, http.StatusOK, func(req *common.SetStatusRequest) { req.WorkItemID = id }, svc.SetStatus)
	case "assign":
		postAction(w, r, http.StatusOK, func(req *common.AssignRequest) { req.WorkItemID = id }, svc.Assign)
	case "deps":
		postAction(w, r, http.StatusCreated, func(req *common.AddDependencyRequest) { req.WorkItemID = id }, svc.AddDependency)
	case "comment":
		postAction(w, r, http.StatusCreated, func(req *common.AddCommentRequest) { req.WorkItemID = id }, svc.AddComment)
	case "artifact":
		postAction(w, r, http.StatusCreated, func(req *common.AddArtifactRequest) { req.WorkItemID = id }, svc.AddArtifact)
	case "approval":
		postAction(w, r, http.StatusCreated, func(req *common.CreateApprovalRequest) { req.WorkItemID = id }, svc.CreateApproval)
	}
}

// postAction decodes a JSON body into Req, lets stamp fill path parameters, and
// writes the service result with status.
func postAction[Req, Resp any](w http.ResponseWriter, r *http.Request, status int, stamp func(*Req), call func(context.Context, Req) (Resp, error)) {
	var req Req
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if stamp != nil {
		stamp(&req)
	}
	out, err := call(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, status, out)
}

// respond writes out with 200, or the mapped error.
func respond[T any](w http.ResponseWriter, out T, err error) {
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleListWorkItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := common.ListWorkItemsRequest{
		Board:        strings.TrimSpace(q.Get("board")),
		Stage:        strings.TrimSpace(q.Get("stage")),
		Status:       strings.TrimSpace(q.Get("status")),
		OwnerUserID:  strings.TrimSpace(q.Get("owner")),
		Priority:     strings.TrimSpace(q.Get("priority")),
		BusinessArea: strings.TrimSpace(q.Get("business_area")),
		Search:       strings.TrimSpace(q.Get("q")),
	}
	var err error
	if req.BlockedOnly, err = parseBoolQuery("blocked", q.Get("blocked")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if req.NeedsApprovalOnly, err = parseBoolQuery("needs_approval", q.Get("needs_approval")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if req.Limit, err = parseLimitQuery(q.Get("limit")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	items, err := h.service.ListWorkItems(r.Context(), req)
	respond(w, map[string]any{"items": items}, err)
}

func (h *Handler) handleCreateWorkItem(w http.ResponseWriter, r *http.Request) {
	postAction(w, r, http.StatusCreated, nil, h.service.CreateWorkItem)
}

func (h *Handler) handleWorkDetail(w http.ResponseWriter, r *http.Request, id string) {
	detail, err := h.service.WorkDetail(r.Context(), id)
	respond(w, detail, err)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, id string) {
	versions, err := h.service.History(r.Context(), id)
	respond(w, map[string]any{"versions": versions}, err)
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	limit, err := parseLimitQuery(r.URL.Query().Get("limit"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	events, err := h.service.ListEvents(r.Context(), id, limit)
	respond(w, map[string]any{"events": events}, err)
}

func (h *Handler) handleRemoveDependency(w http.ResponseWriter, r *http.Request, id, depID string) {
	item, err := h.service.RemoveDependency(r.Context(), common.RemoveDependencyRequest{WorkItemID: id, DepID: depID})
	respond(w, item, err)
}

func (h *Handler) handleDecideApproval(w http.ResponseWriter, r *http.Request, approvalID string) {
	postAction(w, r, http.StatusOK, func(req *common.DecideApprovalRequest) { req.ApprovalID = approvalID }, h.service.DecideApproval)
}

func (h *Handler) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.DailySummary(r.Context())
	respond(w, summary, err)
}

// withRequestActor attaches identity headers to the request context.
// Requests without X-Actor-ID stay anonymous; reads need no actor.
func withRequestActor(r *http.Request) (context.Context, error) {
	actorID := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if actorID == "" {
		return r.Context(), nil
	}
	actor, err := domain.NewActor(actorID, domain.Role(r.Header.Get(HeaderActorRole)))
	if err != nil {
		return nil, fmt.Errorf("%s header: %w", HeaderActorRole, errors.Join(common.ErrInvalidRequest, err))
	}
	return app.WithActor(r.Context(), actor), nil
}

func parseBoolQuery(name, raw string) (bool, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("query %s=%q is not a boolean: %w", name, raw, common.ErrInvalidRequest)
	}
	return v, nil
}

func parseLimitQuery(raw string) (int, error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer: %w", common.ErrInvalidRequest)
	}
	return v, nil
}

func normalizePath(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// errorMappings is checked in order; the first sentinel matched by errors.Is wins.
var errorMappings = []struct {
	target error
	status int
	code   string
	hint   string
}{
	{common.ErrNotFound, http.StatusNotFound, "not_found", ""},
	{common.ErrGateNotSatisfied, http.StatusConflict, "gate_not_satisfied", "Create and approve an approval for the gate, or ask an admin to move the item."},
	{common.ErrConflict, http.StatusConflict, "conflict", "Reload the work item and retry."},
	{common.ErrRuleViolation, http.StatusUnprocessableEntity, "rule_violation", ""},
	{common.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Send the " + HeaderActorID + " header."},
	{common.ErrForbidden, http.StatusForbidden, "forbidden", ""},
	{common.ErrInvalidRequest, http.StatusBadRequest, "invalid_request", ""},
	{common.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable", ""},
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeJSONError(w, m.status, APIError{Code: m.code, Message: common.Message(err), Hint: m.hint})
			return
		}
	}
	writeJSONError(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: common.Message(err)})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "allowed methods: " + strings.Join(allowed, ", "),
	})
}

func writeJSONError(w http.ResponseWriter, status int, apiErr APIError) {
	writeJSON(w, status, ErrorEnvelope{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = fmt.Fprintf(w, "{\"error\":{\"code\":\"encode_error\",\"message\":%q}}\n", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// decodeJSONBody reads exactly one JSON value of at most maxRequestBodyBytes and
// rejects unknown fields.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	if dec.More() {
		return fmt.Errorf("request body: unexpected data after JSON value: %w", common.ErrInvalidRequest)
	}
	if err := r.Context().Err(); err != nil {
		return fmt.Errorf("request canceled: %w", err)
	}
	return nil
}

// statusRecorder remembers the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
