package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/music-school-scheduler/internal/persistence"
)

// ActivityStore persists activity records as JSON payloads keyed by ID.
type ActivityStore struct {
	pool *ConnectionPool
}

var _ persistence.ActivityBacking = (*ActivityStore)(nil)

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, config Config, logger *slog.Logger) (*ActivityStore, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &ActivityStore{pool: pool}, nil
}

// Close releases the database.
func (s *ActivityStore) Close() error {
	return s.pool.Close()
}

// Ping checks the database connection.
func (s *ActivityStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Put inserts or replaces a record.
func (s *ActivityStore) Put(ctx context.Context, record persistence.ActivityRecord) error {
	if record.ID == "" {
		return fmt.Errorf("sqlite: activity id is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", record.ID, err)
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	const upsert = `INSERT INTO activities (id, kind, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, payload = excluded.payload, updated_at = excluded.updated_at`
	return s.pool.withRetry(ctx, func() error {
		_, err := s.pool.db.ExecContext(ctx, upsert, record.ID, record.Kind, string(payload), updatedAt.UTC().Format(time.RFC3339Nano))
		return err
	})
}

// Get returns a single record.
func (s *ActivityStore) Get(ctx context.Context, id string) (persistence.ActivityRecord, error) {
	var payload string
	err := s.pool.db.QueryRowContext(ctx, `SELECT payload FROM activities WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return persistence.ActivityRecord{}, mapError(err)
	}
	return decodeRecord(id, payload)
}

// All returns every record ordered by ID.
func (s *ActivityStore) All(ctx context.Context) ([]persistence.ActivityRecord, error) {
	rows, err := s.pool.db.QueryContext(ctx, `SELECT id, payload FROM activities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list activities: %w", err)
	}
	defer rows.Close()

	var records []persistence.ActivityRecord
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("sqlite: scan activity: %w", err)
		}
		record, err := decodeRecord(id, payload)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate activities: %w", err)
	}
	return records, nil
}

func decodeRecord(id, payload string) (persistence.ActivityRecord, error) {
	var record persistence.ActivityRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return persistence.ActivityRecord{}, fmt.Errorf("%w: %s: %v", persistence.ErrCorruptRecord, id, err)
	}
	return record, nil
}
