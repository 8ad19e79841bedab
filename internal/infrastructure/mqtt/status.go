package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/portaoweb/portao-core/internal/gate"
	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
)

// mirrorQueueSize bounds the updates waiting to be published.
const mirrorQueueSize = 64

// StatusMessage is the retained payload on <prefix>/status.
type StatusMessage struct {
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// RetainedPublisher publishes retained messages. *Client implements it.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// StatusMirror republishes every accepted gate status as a retained MQTT
// message so late subscribers on the broker see the current value.
//
// StatusChanged only queues the update; Run publishes queued updates in
// order. A full queue drops the update and reports ErrMirrorFull.
type StatusMirror struct {
	pub    RetainedPublisher
	topic  string
	queue  chan StatusMessage
	logger *logging.Logger
}

// NewStatusMirror creates a mirror publishing to topics.Status().
func NewStatusMirror(pub RetainedPublisher, topics Topics, logger *logging.Logger) *StatusMirror {
	return &StatusMirror{
		pub:    pub,
		topic:  topics.Status(),
		queue:  make(chan StatusMessage, mirrorQueueSize),
		logger: logger.With("component", "mqtt_mirror"),
	}
}

// StatusChanged implements gate.Sink.
func (m *StatusMirror) StatusChanged(_ context.Context, status gate.Status, source gate.Source) error {
	msg := StatusMessage{
		Status:    status.String(),
		Source:    string(source),
		Timestamp: time.Now().UTC(),
	}
	select {
	case m.queue <- msg:
		return nil
	default:
		return ErrMirrorFull
	}
}

// Run publishes queued updates until ctx is cancelled.
func (m *StatusMirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-m.queue:
			m.publish(msg)
		}
	}
}

func (m *StatusMirror) publish(msg StatusMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("encoding status message failed", "error", err)
		return
	}
	if err := m.pub.PublishRetained(m.topic, payload); err != nil {
		m.logger.Warn("publishing gate status failed",
			"topic", m.topic,
			"status", msg.Status,
			"error", err,
		)
		return
	}
	m.logger.Debug("gate status mirrored", "topic", m.topic, "status", msg.Status)
}

// Reporter accepts status reports. *gate.Broadcaster implements it.
type Reporter interface {
	Report(ctx context.Context, status string, source gate.Source) error
}

// statusReport is the payload accepted on <prefix>/status/report.
type statusReport struct {
	Status *string `json:"status"`
}

// ParseStatusReport extracts the status from a report payload.
//
// A JSON object must carry a "status" string, matching the HTTP body. Any
// other payload is taken as the bare status text, which is what simple
// controller firmware publishes.
func ParseStatusReport(payload []byte) (string, error) {
	text := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(text, "{") {
		return text, nil
	}
	var report statusReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return "", fmt.Errorf("decoding status report: %w", err)
	}
	if report.Status == nil {
		return "", gate.ErrEmptyStatus
	}
	return *report.Status, nil
}

// SubscribeReports feeds every message on <prefix>/status/report into
// reporter with gate.SourceMQTT. Rejected reports are logged and dropped.
func (c *Client) SubscribeReports(ctx context.Context, reporter Reporter) error {
	topic := c.topics.StatusReport()
	return c.Subscribe(topic, byte(c.cfg.QoS), func(_ string, payload []byte) error {
		status, err := ParseStatusReport(payload)
		if err != nil {
			return err
		}
		return reporter.Report(ctx, status, gate.SourceMQTT)
	})
}
