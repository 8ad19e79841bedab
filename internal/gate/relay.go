package gate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
)

// Relay defaults.
const (
	// DefaultCommandTimeout bounds a single device request. The controller
	// answers in well under a second on a healthy LAN.
	DefaultCommandTimeout = 5 * time.Second

	// maxErrorBodySize caps how much of a failed device response ends up in
	// the message shown to the user.
	maxErrorBodySize = 1 << 10
)

// Result is the outcome of one relayed command, as returned to the UI.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CommandObserver is notified after every relay attempt.
// Implementations must not block.
type CommandObserver interface {
	ObserveCommand(cmd Command, result Result, elapsed time.Duration)
}

// RelayConfig describes how to reach the device.
type RelayConfig struct {
	// Address is host[:port] of the controller.
	Address string

	// Scheme is "http" (default) or "https".
	Scheme string

	// Timeout bounds each request. Zero means DefaultCommandTimeout.
	Timeout time.Duration
}

// Relay forwards UI commands to the gate controller.
//
// Each Send is a single attempt. Failures are reported in the Result and
// never returned as errors; the user retries by pressing the button again.
type Relay struct {
	baseURL  string
	address  string
	client   *http.Client
	logger   *logging.Logger
	observer CommandObserver
}

// NewRelay creates a relay for the device described by cfg.
func NewRelay(cfg RelayConfig, logger *logging.Logger) *Relay {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "http"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	return &Relay{
		baseURL: fmt.Sprintf("%s://%s", scheme, strings.TrimRight(cfg.Address, "/")),
		address: cfg.Address,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "relay"),
	}
}

// SetObserver registers an observer for command outcomes.
// Must be called before the relay is shared between goroutines.
func (r *Relay) SetObserver(o CommandObserver) {
	r.observer = o
}

// Address returns the configured device address.
func (r *Relay) Address() string {
	return r.address
}

// Send issues cmd to the device and reports the outcome.
func (r *Relay) Send(ctx context.Context, cmd Command) Result {
	if !cmd.Valid() {
		return Result{Success: false, Message: fmt.Sprintf("comando desconhecido: %s", cmd)}
	}

	start := time.Now()
	result := r.send(ctx, cmd)
	if r.observer != nil {
		r.observer.ObserveCommand(cmd, result, time.Since(start))
	}
	return result
}

func (r *Relay) send(ctx context.Context, cmd Command) Result {
	url := r.baseURL + "/" + string(cmd)
	r.logger.Info("sending command to device", "command", cmd, "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		r.logger.Error("building device request failed", "command", cmd, "error", err)
		return Result{Success: false, Message: fmt.Sprintf("Erro de conexão: %v", err)}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("device unreachable", "command", cmd, "address", r.address, "error", err)
		return Result{Success: false, Message: fmt.Sprintf("Erro de conexão: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		//nolint:errcheck // Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		r.logger.Info("command accepted by device", "command", cmd, "status_code", resp.StatusCode)
		return Result{Success: true}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize)) //nolint:errcheck // Body is informational only
	text := strings.TrimSpace(string(body))
	r.logger.Error("device rejected command",
		"command", cmd,
		"status_code", resp.StatusCode,
		"body", text,
	)
	return Result{
		Success: false,
		Message: fmt.Sprintf("Erro do dispositivo: %d - %s", resp.StatusCode, text),
	}
}
