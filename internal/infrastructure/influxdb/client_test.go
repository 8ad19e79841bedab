package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/portaoweb/portao-core/internal/gate"
	"github.com/portaoweb/portao-core/internal/infrastructure/config"
	"github.com/portaoweb/portao-core/internal/infrastructure/influxdb"
	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "discard"}, "test")
}

// fakeInflux answers the two endpoints the client uses: /ping and
// /api/v2/write. Written line protocol is kept for assertions.
type fakeInflux struct {
	*httptest.Server

	mu      sync.Mutex
	lines   []string
	query   string
	healthy bool
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{healthy: true}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			f.mu.Lock()
			healthy := f.healthy
			f.mu.Unlock()
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
			f.mu.Lock()
			f.query = r.URL.RawQuery
			for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if line != "" {
					f.lines = append(f.lines, line)
				}
			}
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeInflux) setHealthy(healthy bool) {
	f.mu.Lock()
	f.healthy = healthy
	f.mu.Unlock()
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "portao-test-token",
		Org:           "portao",
		Bucket:        "gate",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFakeInflux(t)
	url := f.URL
	f.Close()

	_, err := influxdb.Connect(testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeInflux(t)
	cfg := testConfig(f.URL)
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() with non-positive batch settings error = %v", err)
	}
	client.Close()
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	f.setHealthy(false)
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() expected error for unhealthy server")
	}
}

func TestHealthCheck_Closed(t *testing.T) {
	client, err := influxdb.Connect(testConfig(newFakeInflux(t).URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteCommand(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	at := time.Unix(1760000000, 0)
	client.WriteCommand(gate.CommandOpen, true, 120*time.Millisecond, at)
	client.WriteCommand(gate.CommandStop, false, 5*time.Second, at)
	client.Flush()

	lines := f.written()
	if len(lines) != 2 {
		t.Fatalf("written %d lines, want 2: %v", len(lines), lines)
	}
	wantPrefixes := []string{
		"gate_command,command=abrir,outcome=ok ",
		"gate_command,command=parar,outcome=error ",
	}
	for i, prefix := range wantPrefixes {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line[%d] = %q, want prefix %q", i, lines[i], prefix)
		}
	}
	if !strings.Contains(lines[0], "success=1i") || !strings.Contains(lines[0], "duration_ms=120") {
		t.Errorf("line[0] fields = %q, want success=1i and duration_ms=120", lines[0])
	}
	if !strings.Contains(lines[1], "success=0i") {
		t.Errorf("line[1] fields = %q, want success=0i", lines[1])
	}

	f.mu.Lock()
	query := f.query
	f.mu.Unlock()
	if !strings.Contains(query, "bucket=gate") || !strings.Contains(query, "org=portao") {
		t.Errorf("write query = %q, want org and bucket", query)
	}
}

func TestStatusChanged(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	if err := client.StatusChanged(context.Background(), gate.StatusOpen, gate.SourceMQTT); err != nil {
		t.Fatalf("StatusChanged() error = %v", err)
	}
	client.Flush()

	lines := f.written()
	if len(lines) != 1 {
		t.Fatalf("written %d lines, want 1: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], `gate_status,source=mqtt status="aberto"`) {
		t.Errorf("line = %q", lines[0])
	}
}

func TestObserveCommand_FromRelay(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer device.Close()

	relay := gate.NewRelay(gate.RelayConfig{Address: strings.TrimPrefix(device.URL, "http://")}, testLogger())
	relay.SetObserver(client)

	if res := relay.Send(context.Background(), gate.CommandToggleLight); !res.Success {
		t.Fatalf("Send() = %+v, want success", res)
	}
	client.Flush()

	lines := f.written()
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "gate_command,command=ligarLuz,outcome=ok ") {
		t.Errorf("written = %v, want one ligarLuz point", lines)
	}
}

func TestWrites_AfterCloseAreDropped(t *testing.T) {
	f := newFakeInflux(t)
	client, err := influxdb.Connect(testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	client.WriteCommand(gate.CommandOpen, true, time.Millisecond, time.Now())
	client.Flush()
	if err := client.StatusChanged(context.Background(), gate.StatusOpen, gate.SourceHTTP); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("StatusChanged() after Close error = %v, want ErrNotConnected", err)
	}
	if lines := f.written(); len(lines) != 0 {
		t.Errorf("written after Close = %v, want none", lines)
	}
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

func TestSetOnError(t *testing.T) {
	var mu sync.Mutex
	var got error
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ping" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":"invalid","message":"rejected"}`) //nolint:errcheck // test server
	}))
	defer rejecting.Close()

	client, err := influxdb.Connect(testConfig(rejecting.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	reported := make(chan struct{}, 1)
	client.SetOnError(func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
		select {
		case reported <- struct{}{}:
		default:
		}
	})

	client.WriteStatus(gate.StatusClosed, gate.SourceHTTP, time.Now())
	client.Flush()

	select {
	case <-reported:
	case <-time.After(3 * time.Second):
		t.Fatal("write error not reported")
	}
	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Error("OnError callback got nil error")
	}
}
