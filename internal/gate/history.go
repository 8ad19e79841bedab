package gate

import (
	"context"
	"time"
)

// HistoryEntry is one recorded status report.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRepository stores accepted status reports as an audit trail.
//
// The trail is read-only from the broadcaster's point of view: it is never
// used to seed the current status on start-up.
type HistoryRepository interface {
	// RecordStatus appends one accepted report.
	RecordStatus(ctx context.Context, status Status, source Source) error

	// GetHistory returns up to limit entries, newest first.
	GetHistory(ctx context.Context, limit int) ([]HistoryEntry, error)

	// PruneHistory deletes entries older than the given age and returns how
	// many were removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HistorySink records every broadcast status in a repository.
type HistorySink struct {
	Repo HistoryRepository
}

// StatusChanged implements Sink.
func (s HistorySink) StatusChanged(ctx context.Context, status Status, source Source) error {
	return s.Repo.RecordStatus(ctx, status, source)
}
