package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hylla/metricops/internal/adapters/server/common"
	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/config"
	"github.com/hylla/metricops/internal/domain"
)

// fixedNow anchors natural-language due dates in tests.
var fixedNow = time.Date(2026, 2, 18, 9, 30, 0, 0, time.UTC)

// cliHarness runs commands against one temp config and database.
type cliHarness struct {
	t          *testing.T
	configPath string
	dbPath     string
	env        map[string]string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	return &cliHarness{
		t:          t,
		configPath: filepath.Join(dir, "config.toml"),
		dbPath:     filepath.Join(dir, "data", "metricops.db"),
		env:        map[string]string{},
	}
}

// writeConfig stores TOML content at the harness config path.
func (h *cliHarness) writeConfig(content string) {
	h.t.Helper()
	if err := os.WriteFile(h.configPath, []byte(content), 0o644); err != nil {
		h.t.Fatalf("WriteFile() error = %v", err)
	}
}

// exec runs one CLI invocation and returns stdout, stderr, and the command error.
func (h *cliHarness) exec(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	root, rt := newRootCommand(&stdout, &stderr, func(key string) string { return h.env[key] }, func() time.Time { return fixedNow })
	defer rt.Close()
	root.SetArgs(append([]string{"--config", h.configPath, "--db", h.dbPath}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// mustExec runs one invocation that must succeed.
func (h *cliHarness) mustExec(args ...string) string {
	h.t.Helper()
	stdout, stderr, err := h.exec(args...)
	if err != nil {
		h.t.Fatalf("exec(%v) error = %v (stderr %q)", args, err, stderr)
	}
	return stdout
}

// decodeJSON decodes command stdout into out.
func decodeJSON(t *testing.T, raw string, out any) {
	t.Helper()
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		t.Fatalf("Unmarshal(%q) error = %v", raw, err)
	}
}

func TestGatedWorkflowThroughCLI(t *testing.T) {
	h := newCLIHarness(t)

	var item domain.WorkItem
	decodeJSON(t, h.mustExec("work", "create", "--board", "metric_factory", "--type", "metric", "--title", "Net revenue", "--actor", "dev-1", "-o", "json"), &item)
	if item.ID == "" || item.Stage != "Spec Drafted" || item.Status != domain.StatusOpen {
		t.Fatalf("unexpected created item %#v", item)
	}

	_, _, err := h.exec("work", "move", item.ID, "Spec Approved", "--actor", "lead-1", "--role", "lead")
	if !errors.Is(err, common.ErrGateNotSatisfied) {
		t.Fatalf("expected gate error, got %v", err)
	}
	if got := describeError(err); got != "gate_not_satisfied: Transition requires spec_approval" {
		t.Fatalf("describeError() = %q", got)
	}

	var created common.ApprovalResult
	decodeJSON(t, h.mustExec("approval", "create", item.ID, "--gate", "spec_approval", "--from", "lead-1", "--actor", "dev-1", "-o", "json"), &created)
	if created.Approval.Status != domain.ApprovalPending || !created.WorkItem.NeedsApproval {
		t.Fatalf("unexpected approval result %#v", created)
	}

	var decided common.ApprovalResult
	decodeJSON(t, h.mustExec("approval", "decide", created.Approval.ID, "approved", "--note", "looks right", "--actor", "lead-1", "--role", "lead", "-o", "json"), &decided)
	if decided.Approval.Status != domain.ApprovalApproved || decided.WorkItem.NeedsApproval {
		t.Fatalf("unexpected decision result %#v", decided)
	}

	var moved domain.WorkItem
	decodeJSON(t, h.mustExec("work", "move", item.ID, "Spec Approved", "--actor", "lead-1", "--role", "lead", "-o", "json"), &moved)
	if moved.Stage != "Spec Approved" {
		t.Fatalf("stage = %q, want Spec Approved", moved.Stage)
	}

	var detail map[string]any
	if err := yaml.Unmarshal([]byte(h.mustExec("work", "show", item.ID, "-o", "yaml")), &detail); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	workItem, _ := detail["work_item"].(map[string]any)
	if workItem["stage"] != "Spec Approved" {
		t.Fatalf("unexpected yaml detail %#v", detail)
	}

	var events struct {
		Events []domain.Event `json:"events"`
	}
	decodeJSON(t, h.mustExec("events", item.ID, "--limit", "1", "-o", "json"), &events)
	if len(events.Events) != 1 || events.Events[0].Type != domain.EventStageChanged || events.Events[0].ActorID != "lead-1" {
		t.Fatalf("unexpected newest event %#v", events.Events)
	}
}

func TestDependencyCommandsTrackBlockers(t *testing.T) {
	h := newCLIHarness(t)
	h.writeConfig("[identity]\ndefault_actor = \"analyst-1\"\n")

	var first, second domain.WorkItem
	decodeJSON(t, h.mustExec("work", "create", "--board", "requests", "--type", "report", "--title", "Churn report", "-o", "json"), &first)
	decodeJSON(t, h.mustExec("work", "create", "--board", "requests", "--type", "dataset", "--title", "Churn dataset", "-o", "json"), &second)
	if first.OwnerUserID != "analyst-1" || first.Stage != "Intake" {
		t.Fatalf("unexpected defaults %#v", first)
	}

	var added common.DependencyResult
	decodeJSON(t, h.mustExec("dep", "add", first.ID, second.ID, "--type", "data_needed", "-o", "json"), &added)
	if added.WorkItem.BlockerCount != 1 || added.Dependency.Type != domain.DepTypeDataNeeded {
		t.Fatalf("unexpected dependency result %#v", added)
	}

	var blocked struct {
		Items []domain.WorkItem `json:"items"`
	}
	decodeJSON(t, h.mustExec("work", "list", "--blocked", "-o", "json"), &blocked)
	if len(blocked.Items) != 1 || blocked.Items[0].ID != first.ID {
		t.Fatalf("unexpected blocked list %#v", blocked.Items)
	}

	var removed domain.WorkItem
	decodeJSON(t, h.mustExec("dep", "rm", first.ID, added.Dependency.ID, "-o", "json"), &removed)
	if removed.BlockerCount != 0 {
		t.Fatalf("blocker count = %d, want 0", removed.BlockerCount)
	}

	var recomputed domain.WorkItem
	decodeJSON(t, h.mustExec("work", "recompute", first.ID, "-o", "json"), &recomputed)
	if recomputed.BlockerCount != 0 || recomputed.NeedsApproval {
		t.Fatalf("unexpected recomputed item %#v", recomputed)
	}

	_, _, err := h.exec("dep", "add", first.ID, first.ID)
	if !errors.Is(err, common.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for self dependency, got %v", err)
	}
}

func TestMutationsRequireActor(t *testing.T) {
	h := newCLIHarness(t)
	_, _, err := h.exec("work", "create", "--board", "requests", "--type", "report", "--title", "Orphan")
	if !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
	_, _, err = h.exec("work", "create", "--board", "requests", "--type", "report", "--title", "Read only", "--actor", "v1", "--role", "viewer")
	if !errors.Is(err, common.ErrForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	_, _, err = h.exec("work", "create", "--board", "finance", "--type", "report", "--title", "Nope", "--actor", "u1")
	if got := describeError(err); got != "invalid_request: Unknown board finance" {
		t.Fatalf("describeError() = %q", got)
	}
}

func TestWorkCreateParsesNaturalLanguageDue(t *testing.T) {
	h := newCLIHarness(t)
	var item domain.WorkItem
	decodeJSON(t, h.mustExec("work", "create", "--board", "ml_genai", "--type", "model", "--title", "Churn model", "--due", "next friday", "--sla-hours", "48", "--actor", "ds-1", "-o", "json"), &item)
	if item.DueAt == nil || item.DueAt.Weekday() != time.Friday || !item.DueAt.After(fixedNow) {
		t.Fatalf("unexpected due date %v", item.DueAt)
	}
	if item.SLAHours == nil || *item.SLAHours != 48 {
		t.Fatalf("unexpected sla hours %v", item.SLAHours)
	}

	_, _, err := h.exec("work", "create", "--board", "ml_genai", "--type", "model", "--title", "Bad due", "--due", "zzz", "--actor", "ds-1")
	if !errors.Is(err, common.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for bad due, got %v", err)
	}
}

func TestParseDue(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "  ", ""},
		{"rfc3339", "2026-03-01T10:00:00+02:00", "2026-03-01T08:00:00Z"},
		{"date", "2026-03-05", "2026-03-05T00:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDue(tc.raw, fixedNow)
			if err != nil {
				t.Fatalf("parseDue() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("parseDue() = %q, want %q", got, tc.want)
			}
		})
	}
	if _, err := parseDue("zzz", fixedNow); err == nil {
		t.Fatal("expected error for unrecognized due")
	}
}

func TestTextOutputRendersTables(t *testing.T) {
	h := newCLIHarness(t)
	boards := h.mustExec("boards")
	for _, want := range []string{"metric_factory", "Spec Approved: spec_approval", "Certified Published: reconcile_approval"} {
		if !strings.Contains(boards, want) {
			t.Fatalf("boards output missing %q:\n%s", want, boards)
		}
	}

	h.mustExec("work", "create", "--board", "insight_action", "--type", "insight", "--title", "Retention dip", "--description", "# Why\nweekly cohort fell", "--actor", "pm-1")
	list := h.mustExec("work", "list", "--board", "insight_action")
	if !strings.Contains(list, "Retention dip") || !strings.Contains(list, "Monitor") {
		t.Fatalf("list output missing row:\n%s", list)
	}
	if empty := h.mustExec("work", "list", "--board", "requests"); !strings.Contains(empty, "no work items") {
		t.Fatalf("expected empty marker, got %q", empty)
	}
	summary := h.mustExec("summary")
	if !strings.Contains(summary, "insight_action") {
		t.Fatalf("summary output missing board:\n%s", summary)
	}
}

func TestMemoryBackendFromConfig(t *testing.T) {
	h := newCLIHarness(t)
	h.writeConfig("[database]\nbackend = \"memory\"\n")

	var paths pathsView
	decodeJSON(t, h.mustExec("paths", "-o", "json"), &paths)
	if paths.Backend != string(config.BackendMemory) || paths.ConfigPath != h.configPath {
		t.Fatalf("unexpected paths %#v", paths)
	}

	h.mustExec("work", "create", "--board", "requests", "--type", "report", "--title", "Ephemeral", "--actor", "u1")
	if _, err := os.Stat(h.dbPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("memory backend should not create %s, stat err = %v", h.dbPath, err)
	}
	var summary app.DailySummary
	decodeJSON(t, h.mustExec("summary", "-o", "json"), &summary)
	if len(summary.Counts) != 0 {
		t.Fatalf("memory backend should not persist across runs, got %#v", summary.Counts)
	}
}

func TestPathsHonorsEnvOverrides(t *testing.T) {
	h := newCLIHarness(t)
	var stdout, stderr bytes.Buffer
	envDB := filepath.Join(t.TempDir(), "env.db")
	root, rt := newRootCommand(&stdout, &stderr, func(key string) string {
		if key == "METRICOPS_DB_PATH" {
			return envDB
		}
		return ""
	}, nil)
	defer rt.Close()
	root.SetArgs([]string{"--config", h.configPath, "paths"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "db: "+envDB) {
		t.Fatalf("paths output missing env db path:\n%s", stdout.String())
	}
}

func TestInvalidOutputFormatFails(t *testing.T) {
	h := newCLIHarness(t)
	if _, _, err := h.exec("boards", "-o", "xml"); err == nil {
		t.Fatal("expected invalid output format error")
	}
}

func TestDescribeError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("get: %w", errors.Join(common.ErrNotFound, errors.New("missing"))), "not_found: get: not found: missing"},
		{common.ErrUnauthenticated, "unauthenticated: actor is required"},
		{errors.New("unknown flag: --nope"), "unknown flag: --nope"},
	}
	for _, tc := range cases {
		if got := describeError(tc.err); got != tc.want {
			t.Fatalf("describeError(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRuntimeLoggerWritesDevFile(t *testing.T) {
	cfg := config.Default("/tmp/unused.db")
	cfg.Logging.Level = "debug"
	cfg.Logging.DevFile.Dir = t.TempDir()

	var console bytes.Buffer
	logger, err := newRuntimeLogger(&console, true, cfg, "/ignored", func() time.Time { return fixedNow })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.Info("dev sink check", "work_id", "w1")
	path := logger.DevLogPath()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if filepath.Base(path) != "metricops-20260218.log" {
		t.Fatalf("unexpected dev log path %q", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "dev sink check") || !strings.Contains(string(content), "work_id=w1") {
		t.Fatalf("unexpected dev log content %q", content)
	}
	if !strings.Contains(console.String(), "dev sink check") {
		t.Fatalf("console sink missing event %q", console.String())
	}

	quiet, err := newRuntimeLogger(&console, false, cfg, "/ignored", nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if quiet.DevLogPath() != "" {
		t.Fatalf("expected no dev sink outside dev mode, got %q", quiet.DevLogPath())
	}
}
