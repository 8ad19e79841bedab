package gate

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteHistoryRepository implements HistoryRepository on the status_history table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a repository over an open, migrated database.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// RecordStatus inserts a history row stamped with the current UTC time.
func (r *SQLiteHistoryRepository) RecordStatus(ctx context.Context, status Status, source Source) error {
	if status.IsEmpty() {
		return ErrEmptyStatus
	}
	if source == "" {
		source = SourceHTTP
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO status_history (status, source, created_at) VALUES (?, ?, ?)",
		string(status),
		string(source),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting status history: %w", err)
	}
	return nil
}

// GetHistory returns recent entries ordered newest first.
// limit defaults to 50 and is clamped to 200.
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, source, created_at
		 FROM status_history
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry     HistoryEntry
			status    string
			source    string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &status, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning status history: %w", err)
		}
		entry.Status = Status(status)
		entry.Source = Source(source)

		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		entry.CreatedAt = ts

		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status history: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes entries older than now-olderThan.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	// RFC3339Nano strings sort lexically in time order only with a fixed
	// width, so compare through SQLite's julianday instead.
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM status_history WHERE julianday(created_at) < julianday(?)",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting status history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
