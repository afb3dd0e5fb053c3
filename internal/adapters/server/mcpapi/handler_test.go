package mcpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hylla/metricops/internal/adapters/server/common"
	"github.com/hylla/metricops/internal/adapters/storage/memlog"
	"github.com/hylla/metricops/internal/app"
)

type rpcResponse struct {
	ID     float64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Structured map[string]any `json:"structuredContent"`
	IsError    bool           `json:"isError"`
}

// text returns the first text content block.
func (r toolResult) text(t *testing.T) string {
	t.Helper()
	for _, c := range r.Content {
		if c.Type == "text" {
			return c.Text
		}
	}
	t.Fatalf("tool result has no text content: %+v", r)
	return ""
}

// mcpClient posts JSON-RPC requests at one test server.
type mcpClient struct {
	server *httptest.Server
	nextID int
}

// newMCPClient serves the MCP handler over a fresh in-memory workflow service.
func newMCPClient(t *testing.T) *mcpClient {
	t.Helper()
	seq := 0
	clock := time.Date(2026, 2, 21, 9, 0, 0, 0, time.UTC)
	svc := app.NewService(memlog.New(), func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}, func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}, app.ServiceConfig{})
	handler, err := NewHandler(Config{}, common.NewAppServiceAdapter(svc))
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	c := &mcpClient{server: httptest.NewServer(handler)}
	t.Cleanup(c.server.Close)
	c.initialize(t)
	return c
}

func (c *mcpClient) initialize(t *testing.T) (*http.Response, rpcResponse) {
	return c.rpc(t, "initialize", map[string]any{
		"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
		"clientInfo":      map[string]any{"name": "metricops-test", "version": "0.0.1"},
	})
}

// rpc sends one request and decodes the envelope.
func (c *mcpClient) rpc(t *testing.T, method string, params any) (*http.Response, rpcResponse) {
	t.Helper()
	c.nextID++
	envelope := map[string]any{"jsonrpc": "2.0", "id": c.nextID, "method": method}
	if params != nil {
		envelope["params"] = params
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal %s: %v", method, err)
	}
	resp, err := c.server.Client().Post(c.server.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", method, err)
	}
	defer resp.Body.Close()
	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", method, err)
	}
	if out.Error != nil {
		t.Fatalf("%s returned rpc error %d: %s", method, out.Error.Code, out.Error.Message)
	}
	return resp, out
}

// call invokes one tool by name.
func (c *mcpClient) call(t *testing.T, name string, args map[string]any) toolResult {
	t.Helper()
	_, resp := c.rpc(t, "tools/call", map[string]any{"name": name, "arguments": args})
	var result toolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode %s result: %v", name, err)
	}
	return result
}

// mustCall invokes one tool and fails the test on a tool error.
func (c *mcpClient) mustCall(t *testing.T, name string, args map[string]any) map[string]any {
	t.Helper()
	result := c.call(t, name, args)
	if result.IsError {
		t.Fatalf("%s failed: %s", name, result.text(t))
	}
	return result.Structured
}

func TestHandlerUsesStatelessTransport(t *testing.T) {
	c := newMCPClient(t)
	resp, decoded := c.initialize(t)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != float64(c.nextID) {
		t.Fatalf("id = %v, want %d", decoded.ID, c.nextID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("unexpected session id %q", got)
	}
}

func TestHandlerRegistersWorkflowTools(t *testing.T) {
	c := newMCPClient(t)
	_, resp := c.rpc(t, "tools/list", nil)
	var listed struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listed); err != nil {
		t.Fatalf("decode tools/list: %v", err)
	}
	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"metricops.list_boards",
		"metricops.create_work_item",
		"metricops.get_work_item",
		"metricops.list_work_items",
		"metricops.move_stage",
		"metricops.set_status",
		"metricops.assign",
		"metricops.recompute",
		"metricops.add_dependency",
		"metricops.remove_dependency",
		"metricops.create_approval",
		"metricops.decide_approval",
		"metricops.list_events",
	} {
		if !slices.Contains(names, want) {
			t.Fatalf("tools/list missing %s in %v", want, names)
		}
	}
}

// TestToolsDriveGatedWorkflow walks a metric through its spec approval gate.
func TestToolsDriveGatedWorkflow(t *testing.T) {
	c := newMCPClient(t)

	item := c.mustCall(t, "metricops.create_work_item", map[string]any{
		"board":    "metric_factory",
		"type":     "metric",
		"title":    "Net revenue",
		"actor_id": "dev-1",
	})
	workID, _ := item["work_id"].(string)
	if workID == "" || item["stage"] != "Spec Drafted" {
		t.Fatalf("unexpected created item %#v", item)
	}

	moveArgs := map[string]any{
		"work_id":    workID,
		"to_stage":   "Spec Approved",
		"actor_id":   "lead-1",
		"actor_role": "lead",
	}
	blocked := c.call(t, "metricops.move_stage", moveArgs)
	if !blocked.IsError {
		t.Fatal("expected gated move to fail")
	}
	if got := blocked.text(t); got != "gate_not_satisfied: Transition requires spec_approval" {
		t.Fatalf("unexpected gate error text %q", got)
	}

	approval := c.mustCall(t, "metricops.create_approval", map[string]any{
		"work_id":               workID,
		"gate":                  "spec_approval",
		"required_from_user_id": "lead-1",
		"actor_id":              "dev-1",
	})
	row, _ := approval["approval"].(map[string]any)
	approvalID, _ := row["approval_id"].(string)

	c.mustCall(t, "metricops.decide_approval", map[string]any{
		"approval_id": approvalID,
		"status":      "approved",
		"actor_id":    "lead-1",
		"actor_role":  "lead",
	})

	if moved := c.mustCall(t, "metricops.move_stage", moveArgs); moved["stage"] != "Spec Approved" {
		t.Fatalf("stage = %v, want Spec Approved", moved["stage"])
	}

	events := c.mustCall(t, "metricops.list_events", map[string]any{"work_id": workID, "limit": 2})
	rows, _ := events["events"].([]any)
	if len(rows) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rows))
	}
	newest, _ := rows[0].(map[string]any)
	if newest["event_type"] != "stage_changed" || newest["actor_user_id"] != "lead-1" {
		t.Fatalf("unexpected newest event %#v", newest)
	}

	repaired := c.mustCall(t, "metricops.recompute", map[string]any{"work_id": workID, "actor_id": "lead-1", "actor_role": "lead"})
	if repaired["needs_approval"] != false || repaired["blocker_count"] != float64(0) {
		t.Fatalf("unexpected recomputed item %#v", repaired)
	}
}

func TestToolErrorsCarryClassPrefix(t *testing.T) {
	c := newMCPClient(t)
	cases := []struct {
		name   string
		tool   string
		args   map[string]any
		prefix string
	}{
		{"missing item", "metricops.get_work_item", map[string]any{"work_id": "nope"}, "not_found:"},
		{"unknown board", "metricops.create_work_item", map[string]any{"board": "finance", "type": "t", "title": "x", "actor_id": "u1"}, "invalid_request:"},
		{"viewer", "metricops.create_work_item", map[string]any{"board": "requests", "type": "t", "title": "x", "actor_id": "v1", "actor_role": "viewer"}, "forbidden:"},
		{"missing actor", "metricops.assign", map[string]any{"work_id": "w1", "owner_user_id": "u2"}, "required argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := c.call(t, tc.tool, tc.args)
			if !result.IsError {
				t.Fatalf("expected %s to fail", tc.tool)
			}
			if text := result.text(t); !strings.Contains(text, tc.prefix) {
				t.Fatalf("error text %q missing %q", text, tc.prefix)
			}
		})
	}
}
