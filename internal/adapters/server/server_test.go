package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hylla/metricops/internal/adapters/server/common"
	"github.com/hylla/metricops/internal/adapters/storage/memlog"
	"github.com/hylla/metricops/internal/app"
)

func newDeps() Dependencies {
	svc := app.NewService(memlog.New(), nil, nil, app.ServiceConfig{})
	return Dependencies{Service: common.NewAppServiceAdapter(svc)}
}

// TestNewHandlerRoutesHealthAndAPI verifies the composed mux mounts every surface.
func TestNewHandlerRoutesHealthAndAPI(t *testing.T) {
	handler, cfg, err := NewHandler(Config{}, newDeps())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.HTTPBind != defaultBindAddress || cfg.APIEndpoint != "/api/v1" || cfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	for _, path := range []string{"/healthz", "/readyz", "/api/v1/boards"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

// TestReadyzReportsStoreFailure verifies readiness follows the store probe.
func TestReadyzReportsStoreFailure(t *testing.T) {
	deps := newDeps()
	deps.Ready = func(context.Context) error { return errors.New("database is locked") }
	handler, _, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// TestNormalizeConfigRejectsCollidingEndpoints verifies api and mcp paths must differ.
func TestNormalizeConfigRejectsCollidingEndpoints(t *testing.T) {
	if _, err := normalizeConfig(Config{APIEndpoint: "/rpc/", MCPEndpoint: "rpc"}); err == nil {
		t.Fatal("expected endpoint collision error")
	}
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("expected missing service error")
	}
}

// TestCleanEndpoint verifies endpoint paths normalize to one leading slash.
func TestCleanEndpoint(t *testing.T) {
	cases := map[string]string{
		"":           "/fallback",
		"/":          "/fallback",
		"api":        "/api",
		" /api/v2/ ": "/api/v2",
	}
	for in, want := range cases {
		if got := cleanEndpoint(in, "/fallback"); got != want {
			t.Fatalf("cleanEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestServeStopsOnCancel verifies the listener serves until the context ends.
func TestServeStopsOnCancel(t *testing.T) {
	handler, _, err := NewHandler(Config{}, newDeps())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, listener, handler, time.Second)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
