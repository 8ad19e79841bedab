package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/portaoweb/portao-core/internal/gate"
)

// Measurement names.
const (
	MeasurementCommand = "gate_command"
	MeasurementStatus  = "gate_status"
)

// Command outcome tag values.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// WriteCommand records one relayed command.
//
// Tags: command, outcome. Fields: success (0/1), duration_ms.
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteCommand(cmd gate.Command, success bool, elapsed time.Duration, at time.Time) {
	if !c.IsConnected() {
		return
	}

	outcome := outcomeError
	successValue := 0
	if success {
		outcome = outcomeOK
		successValue = 1
	}

	point := write.NewPoint(
		MeasurementCommand,
		map[string]string{
			"command": string(cmd),
			"outcome": outcome,
		},
		map[string]interface{}{
			"success":     successValue,
			"duration_ms": float64(elapsed) / float64(time.Millisecond),
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteStatus records one accepted status report.
//
// Tags: source. Fields: status.
func (c *Client) WriteStatus(status gate.Status, source gate.Source, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementStatus,
		map[string]string{
			"source": string(source),
		},
		map[string]interface{}{
			"status": status.String(),
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// ObserveCommand implements gate.CommandObserver.
func (c *Client) ObserveCommand(cmd gate.Command, result gate.Result, elapsed time.Duration) {
	c.WriteCommand(cmd, result.Success, elapsed, time.Now())
}

// StatusChanged implements gate.Sink.
func (c *Client) StatusChanged(_ context.Context, status gate.Status, source gate.Source) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.WriteStatus(status, source, time.Now())
	return nil
}
