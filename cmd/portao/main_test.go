package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/portaoweb/portao-core/internal/gate"
	"github.com/portaoweb/portao-core/internal/infrastructure/config"
	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
)

// isolateEnv clears every variable run consults.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORTAO_CONFIG", "PORT", "PORTAO_API_PORT", "PORTAO_API_HOST", "PORTAO_DEVICE_ADDRESS",
		"PORTAO_DATABASE_PATH", "PORTAO_MQTT_HOST", "PORTAO_MQTT_USERNAME",
		"PORTAO_MQTT_PASSWORD", "PORTAO_INFLUXDB_TOKEN", "PORTAO_JWT_SECRET",
		"PORTAO_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("PORTAO_CONFIG", path)
}

// startRun runs the bridge in the background and waits for /api/health.
func startRun(t *testing.T, port int) (base string, stop func() error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	base = fmt.Sprintf("http://127.0.0.1:%d", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		select {
		case err := <-done:
			cancel()
			t.Fatalf("run() exited during start-up: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("server did not become healthy")
		}
		time.Sleep(20 * time.Millisecond)
	}

	return base, func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(15 * time.Second):
			t.Fatal("run() did not return after cancel")
			return nil
		}
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PORTAO_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_PortInUse(t *testing.T) {
	isolateEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	writeConfig(t, fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
logging:
  output: discard
`, port))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the port is already bound")
	}
	if !strings.Contains(err.Error(), "starting API server") {
		t.Errorf("run() error = %v, want API start failure", err)
	}
}

func TestRun_BadDatabasePath(t *testing.T) {
	isolateEnv(t)
	writeConfig(t, fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
database:
  enabled: true
  path: "/nonexistent/dir/portao.db"
logging:
  output: discard
`, freePort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the database cannot be opened")
	}
}

// TestRun_RelayAndReport drives the running bridge through a full cycle: a
// command reaches the fake controller, a status report becomes the current
// status and lands in the history table.
func TestRun_RelayAndReport(t *testing.T) {
	isolateEnv(t)

	received := make(chan string, 1)
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer device.Close()

	port := freePort(t)
	dbPath := filepath.Join(t.TempDir(), "portao.db")
	writeConfig(t, fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
device:
  address: %q
  timeout: 2s
database:
  enabled: true
  path: %q
  history_retention: 720h
mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: %d
    client_id: "portao-main-test"
logging:
  output: discard
`, port, strings.TrimPrefix(device.URL, "http://"), dbPath, freePort(t)))

	base, stop := startRun(t, port)

	// Command relay
	resp, err := http.Post(base+"/comando/abrir", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /comando/abrir error = %v", err)
	}
	var result struct {
		Success bool `json:"success"`
	}
	json.NewDecoder(resp.Body).Decode(&result) //nolint:errcheck // asserted below
	resp.Body.Close()
	if !result.Success {
		t.Error("POST /comando/abrir success = false, want true")
	}
	select {
	case path := <-received:
		if path != "/abrir" {
			t.Errorf("device got %q, want /abrir", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device did not receive the command")
	}

	// Status report
	resp, err = http.Post(base+"/statusPortao", "application/json", strings.NewReader(`{"status":"aberto"}`))
	if err != nil {
		t.Fatalf("POST /statusPortao error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST /statusPortao status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(base + "/statusPortao")
	if err != nil {
		t.Fatalf("GET /statusPortao error = %v", err)
	}
	var current struct {
		Status string `json:"status"`
	}
	json.NewDecoder(resp.Body).Decode(&current) //nolint:errcheck // asserted below
	resp.Body.Close()
	if current.Status != "aberto" {
		t.Errorf("GET /statusPortao = %q, want aberto", current.Status)
	}

	resp, err = http.Get(base + "/statusPortao/historico")
	if err != nil {
		t.Fatalf("GET /statusPortao/historico error = %v", err)
	}
	var history struct {
		Count int `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&history) //nolint:errcheck // asserted below
	resp.Body.Close()
	if history.Count != 1 {
		t.Errorf("history count = %d, want 1", history.Count)
	}

	if err := stop(); err != nil {
		t.Errorf("run() after cancel error = %v, want nil", err)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("PORTAO_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestGetConfigPath_NoFile(t *testing.T) {
	t.Setenv("PORTAO_CONFIG", "")
	chdir(t, t.TempDir())

	if path := getConfigPath(); path != "" {
		t.Errorf("getConfigPath() = %q, want empty without %s", path, defaultConfigPath)
	}
}

func TestGetConfigPath_DefaultFile(t *testing.T) {
	t.Setenv("PORTAO_CONFIG", "")
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, defaultConfigPath), []byte("{}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// historyStub counts prunes; the other repository methods are unused here.
type historyStub struct {
	prunes chan time.Duration
}

func (h *historyStub) RecordStatus(context.Context, gate.Status, gate.Source) error {
	return nil
}

func (h *historyStub) GetHistory(context.Context, int) ([]gate.HistoryEntry, error) {
	return nil, nil
}

func (h *historyStub) PruneHistory(_ context.Context, olderThan time.Duration) (int64, error) {
	select {
	case h.prunes <- olderThan:
	default:
	}
	return 1, nil
}

func TestPruneHistory(t *testing.T) {
	repo := &historyStub{prunes: make(chan time.Duration, 8)}
	log := logging.New(config.LoggingConfig{Level: "error", Output: "discard"}, "test")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- pruneHistory(ctx, repo, 24*time.Hour, 10*time.Millisecond, log)
	}()

	for i := 0; i < 2; i++ {
		select {
		case got := <-repo.prunes:
			if got != 24*time.Hour {
				t.Errorf("PruneHistory(olderThan) = %v, want 24h", got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("prune %d did not happen", i+1)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("pruneHistory() error = %v, want nil", err)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
