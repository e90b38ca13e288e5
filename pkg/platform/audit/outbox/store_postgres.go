package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	txcontext "warden/pkg/platform/tx"
)

// Entry is one unpublished outbox row.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// PostgresStore claims outbox rows with FOR UPDATE SKIP LOCKED so several
// relays can run against one database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Claim locks up to limit unpublished rows, hands them to publish, and marks
// the returned ids as published in the same transaction. Rows that publish
// does not return stay unpublished.
func (s *PostgresStore) Claim(ctx context.Context, limit int, publish func(ctx context.Context, entries []Entry) ([]uuid.UUID, error)) (int, error) {
	published := 0
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
			FROM outbox
			WHERE published_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("select outbox: %w", err)
		}
		var entries []Entry
		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox: %w", err)
			}
			entries = append(entries, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate outbox: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		ids, pubErr := publish(ctx, entries)
		if len(ids) > 0 {
			strIDs := make([]string, len(ids))
			for i, id := range ids {
				strIDs[i] = id.String()
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE outbox SET published_at = NOW() WHERE id = ANY($1::uuid[])
			`, pq.Array(strIDs)); err != nil {
				return fmt.Errorf("mark outbox published: %w", err)
			}
			published = len(ids)
		}
		if pubErr != nil && len(ids) == 0 {
			return pubErr
		}
		return nil
	})
	return published, err
}

// Pending counts unpublished rows.
func (s *PostgresStore) Pending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}
