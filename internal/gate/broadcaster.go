package gate

import (
	"context"
	"sync"

	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
)

// Sink receives every accepted status report.
//
// Sinks are called synchronously while the broadcaster holds its writer
// lock, so they see reports in arrival order. They must not block on slow
// peers and must not call back into the Broadcaster.
type Sink interface {
	StatusChanged(ctx context.Context, status Status, source Source) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, status Status, source Source) error

// StatusChanged implements Sink.
func (f SinkFunc) StatusChanged(ctx context.Context, status Status, source Source) error {
	return f(ctx, status, source)
}

type namedSink struct {
	name string
	sink Sink
}

// Broadcaster owns the current gate Status and fans every accepted report
// out to the registered sinks.
type Broadcaster struct {
	logger *logging.Logger

	mu      sync.Mutex
	current Status
	updates uint64
	sinks   []namedSink
}

// NewBroadcaster creates a broadcaster holding StatusUnknown.
func NewBroadcaster(logger *logging.Logger) *Broadcaster {
	return &Broadcaster{
		logger:  logger.With("component", "broadcaster"),
		current: StatusUnknown,
	}
}

// AddSink registers a sink under a name used in log records.
func (b *Broadcaster) AddSink(name string, sink Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, namedSink{name: name, sink: sink})
	b.mu.Unlock()
}

// Report accepts a status from the device.
//
// An empty value is rejected with ErrEmptyStatus and leaves the current
// status untouched. Any other value replaces the current status and is
// delivered to every sink, even when it equals the previous value.
// Sink failures are logged; they never fail the report.
func (b *Broadcaster) Report(ctx context.Context, status string, source Source) error {
	st := Status(status)
	if st.IsEmpty() {
		return ErrEmptyStatus
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.current
	b.current = st
	b.updates++

	b.logger.Info("gate status received",
		"status", st,
		"previous", previous,
		"source", source,
	)

	for _, ns := range b.sinks {
		if err := ns.sink.StatusChanged(ctx, st, source); err != nil {
			b.logger.Warn("status sink failed", "sink", ns.name, "status", st, "error", err)
		}
	}

	return nil
}

// Current returns the current status.
func (b *Broadcaster) Current() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe hands the current status to fn exactly once.
//
// fn runs under the writer lock. A client that joins the fan-out before
// calling Subscribe therefore ends up with the latest value last: either it
// receives a concurrent report through its sink and then the same value
// here, or the current value here and the next report afterwards.
func (b *Broadcaster) Subscribe(fn func(Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.current)
}

// Updates returns how many reports have been accepted since start.
func (b *Broadcaster) Updates() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updates
}
