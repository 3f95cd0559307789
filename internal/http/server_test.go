package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ochronus/gozenodo/internal/app"
	"github.com/ochronus/gozenodo/internal/config"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
)

func setupTestContainer(t *testing.T, cfg *config.Config, opts ...app.Option) *app.Container {
	t.Helper()
	cfg.FileDirectory = t.TempDir()
	opts = append([]app.Option{app.WithLogger(setupTestLogger())}, opts...)

	container, err := app.NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("failed to build container: %v", err)
	}
	return container
}

func TestNewServer(t *testing.T) {
	container := setupTestContainer(t, setupTestConfig())

	server := NewServer(container)

	if server == nil {
		t.Fatal("expected non-nil server")
	}
	if server.config != container.Config {
		t.Error("config not set correctly")
	}
	if server.logger != container.Logger {
		t.Error("logger not set correctly")
	}
	if server.handler == nil {
		t.Error("expected non-nil handler")
	}
	if server.router == nil {
		t.Error("expected non-nil router")
	}
}

func TestNewServerDebugMode(t *testing.T) {
	cfg := setupTestConfig()
	cfg.Loglevel = "debug"

	server := NewServer(setupTestContainer(t, cfg))

	if server == nil {
		t.Fatal("expected non-nil server")
	}
}

func TestGetRouter(t *testing.T) {
	server := NewServer(setupTestContainer(t, setupTestConfig()))

	router := server.GetRouter()
	if router == nil {
		t.Fatal("expected non-nil router")
	}
	if router != server.router {
		t.Error("GetRouter should return the server's router")
	}
}

func TestServerRouteRegistration(t *testing.T) {
	server := NewServer(setupTestContainer(t, setupTestConfig()))

	want := map[string]bool{
		"GET /api/status":                 false,
		"GET /api/depositions":            false,
		"POST /api/depositions":           false,
		"POST /api/depositions/:id/files": false,
	}
	for _, route := range server.GetRouter().Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestServerUnknownRoute(t *testing.T) {
	server := NewServer(setupTestContainer(t, setupTestConfig()))

	w := doRequest(server.GetRouter(), "GET", "/api/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestServerRequestIDIsReused(t *testing.T) {
	server := NewServer(setupTestContainer(t, setupTestConfig()))

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", basicAuthHeader("testuser", "testpass"))
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	server.GetRouter().ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("expected request id abc-123, got %q", got)
	}
}

func TestServerMissingTokenIsPreconditionFailed(t *testing.T) {
	server := NewServer(setupTestContainer(t, setupTestConfig()))

	w := doRequest(server.GetRouter(), "GET", "/api/depositions", "")
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected status %d, got %d: %s", http.StatusPreconditionFailed, w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "No token defined for this operation; please contact your administrator" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
}

func TestServerListDepositionsAgainstZenodo(t *testing.T) {
	var gotToken, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("access_token")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7}]`))
	}))
	defer upstream.Close()

	cfg := setupTestConfig()
	cfg.Zenodo.SandboxToken = "sandbox-secret"
	container := setupTestContainer(t, cfg,
		app.WithHTTPClient(upstream.Client()),
		app.WithSessionOptions(zenodo.WithBaseURLs(upstream.URL+"/sandbox/", upstream.URL+"/production/")),
	)
	server := NewServer(container)

	w := doRequest(server.GetRouter(), "GET", "/api/depositions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if w.Body.String() != `[{"id":7}]` {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if gotToken != "sandbox-secret" {
		t.Errorf("expected sandbox token, got %q", gotToken)
	}
	if gotPath != "/sandbox/api/deposit/depositions" {
		t.Errorf("unexpected upstream path: %s", gotPath)
	}
}

func TestServerStatusReportsConfiguredEnvironments(t *testing.T) {
	cfg := setupTestConfig()
	cfg.Zenodo.ProductionToken = "production-secret"
	server := NewServer(setupTestContainer(t, cfg))

	w := doRequest(server.GetRouter(), "GET", "/api/status", "")
	body := decodeBody(t, w)
	if body["sandbox"] != false || body["production"] != true {
		t.Errorf("unexpected status: %v", body)
	}
}
