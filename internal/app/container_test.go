package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ochronus/gozenodo/internal/config"
	"github.com/ochronus/gozenodo/internal/services/zenodo"
	"github.com/ochronus/gozenodo/internal/storage"
)

type mockFiles struct{}

func (m *mockFiles) FilesByID(string) ([]zenodo.PhysicalFile, error) { return nil, nil }
func (m *mockFiles) AbsolutePath(f zenodo.PhysicalFile) string      { return f.Path }

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.FileDirectory = t.TempDir()
	cfg.Zenodo = config.ZenodoConfig{SandboxToken: "sandbox-token"}
	return cfg
}

func TestNewContainerDefaults(t *testing.T) {
	cfg := baseConfig(t)

	container, err := NewContainer(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if container.Logger == nil {
		t.Fatal("expected logger to be initialized")
	}
	store, ok := container.Files.(*storage.DirStore)
	if !ok {
		t.Fatalf("expected *storage.DirStore, got %T", container.Files)
	}
	if store.Root() != cfg.FileDirectory {
		t.Errorf("expected store root %q, got %q", cfg.FileDirectory, store.Root())
	}
	if container.HTTPClient == nil || container.HTTPClient.Timeout != 60*time.Second {
		t.Errorf("expected http client with 60s timeout, got %+v", container.HTTPClient)
	}
}

func TestContainerOverrides(t *testing.T) {
	cfg := baseConfig(t)
	customLogger := buildDefaultLogger("debug")
	customFiles := &mockFiles{}
	customClient := &http.Client{Timeout: time.Second}

	container, err := NewContainer(
		cfg,
		WithLogger(customLogger),
		WithFileLookup(customFiles),
		WithHTTPClient(customClient),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if container.Logger != customLogger {
		t.Error("expected custom logger to be used")
	}
	if container.Files != customFiles {
		t.Error("expected custom file lookup to be used")
	}
	if container.HTTPClient != customClient {
		t.Error("expected custom http client to be used")
	}
}

func TestNewContainerNilConfigError(t *testing.T) {
	if _, err := NewContainer(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestWithLoggerNilError(t *testing.T) {
	_, err := NewContainer(baseConfig(t), WithLogger(nil))
	if err == nil {
		t.Fatal("expected error when logger is nil")
	}
}

func TestWithFileLookupNilError(t *testing.T) {
	_, err := NewContainer(baseConfig(t), WithFileLookup(nil))
	if err == nil {
		t.Fatal("expected error when file lookup is nil")
	}
}

func TestWithHTTPClientNilError(t *testing.T) {
	_, err := NewContainer(baseConfig(t), WithHTTPClient(nil))
	if err == nil {
		t.Fatal("expected error when http client is nil")
	}
}

func TestNewSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_token"); got != "sandbox-token" {
			t.Errorf("unexpected token: %q", got)
		}
		w.Write([]byte(`[{"id": 1}]`))
	}))
	defer server.Close()

	container, err := NewContainer(baseConfig(t),
		WithHTTPClient(server.Client()),
		WithSessionOptions(zenodo.WithBaseURLs(server.URL+"/", server.URL+"/")),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, err := container.NewSession(false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !session.Configured() {
		t.Fatal("expected configured session")
	}

	depositions, err := session.ListDepositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(depositions) != 1 {
		t.Errorf("expected 1 deposition, got %d", len(depositions))
	}
}

func TestNewSessionMissingProductionToken(t *testing.T) {
	container, err := NewContainer(baseConfig(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, err := container.NewSession(true)
	if !errors.Is(err, zenodo.ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if session == nil || session.Configured() {
		t.Error("expected an unconfigured session")
	}
}
