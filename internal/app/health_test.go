package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/health", "", nil)

	expectStatus(t, rr, http.StatusOK)
	if ok := decodeMap(t, rr)["ok"]; ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/ready", "", nil)

	expectStatus(t, rr, http.StatusOK)
	response := decodeMap(t, rr)
	if status := response["status"]; status != "ready" {
		t.Errorf("expected status=ready, got %v", status)
	}
	checks, ok := response["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks object, got %v", response["checks"])
	}
	dbCheck, ok := checks["database"].(map[string]any)
	if !ok {
		t.Fatalf("expected database check, got %v", checks["database"])
	}
	if dbStatus := dbCheck["status"]; dbStatus != "ok" {
		t.Errorf("expected database status=ok, got %v", dbStatus)
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	rr := env.do(http.MethodGet, "/api/ready", "", nil)

	expectStatus(t, rr, http.StatusServiceUnavailable)
	response := decodeMap(t, rr)
	if ok := response["ok"]; ok != false {
		t.Errorf("expected ok=false, got %v", ok)
	}
	if status := response["status"]; status != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", status)
	}
	checks, _ := response["checks"].(map[string]any)
	dbCheck, _ := checks["database"].(map[string]any)
	if dbCheck["status"] != "error" {
		t.Errorf("expected database status=error, got %v", dbCheck["status"])
	}
	if msg, _ := dbCheck["error"].(string); !strings.Contains(msg, "closed") {
		t.Errorf("expected closed database error, got %q", msg)
	}
}

func TestHealthEndpoint_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code < 200 || rr.Code > 299 {
		t.Fatalf("expected 2xx preflight response, got %d", rr.Code)
	}
	if methods := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, http.MethodGet) {
		t.Errorf("expected GET in allowed methods, got %q", methods)
	}
}

func TestHealthEndpoint_CORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin=*, got %v", origin)
	}
	if cache := rr.Header().Get("Cache-Control"); cache != "no-store" {
		t.Errorf("expected Cache-Control=no-store, got %v", cache)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/health", "", nil)

	rr := env.do(http.MethodGet, "/metrics", "", nil)

	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "journey_http_requests_total") {
		t.Fatalf("expected http request counter in metrics output")
	}
}

func TestPingMethod(t *testing.T) {
	env := newTestEnv(t)
	if err := env.service.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	_ = env.store.DB().Close()
	if err := env.service.Ping(context.Background()); err == nil {
		t.Fatalf("expected Ping() error after close")
	}
}
