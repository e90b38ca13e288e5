package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"warden/pkg/domain"
	audit "warden/pkg/platform/audit"
	"warden/pkg/platform/sentinel"
	txcontext "warden/pkg/platform/tx"
)

// Store implements audit.Store on Postgres. Every appended attempt and action
// is written together with an outbox row in the same transaction; the outbox
// relay publishes those rows to Kafka.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OutboxPayload is the JSON published for each audit entry.
type OutboxPayload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Kind      string `json:"kind"`
	Action    string `json:"action"`
	UserID    string `json:"user_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Success   bool   `json:"success"`
	Details   string `json:"details,omitempty"`
	PseudoID  string `json:"pseudo_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (s *Store) AppendAttempt(ctx context.Context, attempt audit.Attempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	payload := OutboxPayload{
		ID:        attempt.ID.String(),
		Category:  string(attempt.Category()),
		Kind:      string(audit.KindAttempt),
		Action:    audit.AttemptAction,
		UserID:    attempt.UserID.String(),
		GroupID:   attempt.GroupID.String(),
		Username:  attempt.Username,
		Success:   attempt.Success,
		Details:   attempt.Reason,
		PseudoID:  attempt.PseudoID,
		Timestamp: attempt.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_attempts (id, user_id, group_id, username, success, reason, pseudo_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			attempt.ID,
			attempt.UserID.String(),
			attempt.GroupID.String(),
			attempt.Username,
			attempt.Success,
			attempt.Reason,
			attempt.PseudoID,
			attempt.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert audit attempt: %w", err)
		}
		return insertOutbox(ctx, tx, "user", attempt.UserID.String(), audit.AttemptAction, payload, attempt.Timestamp)
	})
}

func (s *Store) AppendAction(ctx context.Context, action audit.Action) error {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	payload := OutboxPayload{
		ID:        action.ID.String(),
		Category:  string(action.Type.Category()),
		Kind:      string(audit.KindAction),
		Action:    string(action.Type),
		UserID:    action.UserID.String(),
		ActorID:   action.ActorID.String(),
		GroupID:   action.GroupID.String(),
		Success:   action.Success,
		Details:   action.Details,
		Timestamp: action.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	aggregateType, aggregateID := "group", action.GroupID.String()
	if !action.UserID.IsNil() {
		aggregateType, aggregateID = "user", action.UserID.String()
	}

	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_actions (id, action, actor_id, user_id, group_id, success, details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			action.ID,
			string(action.Type),
			action.ActorID.String(),
			action.UserID.String(),
			action.GroupID.String(),
			action.Success,
			action.Details,
			action.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert audit action: %w", err)
		}
		return insertOutbox(ctx, tx, aggregateType, aggregateID, string(action.Type), payload, action.Timestamp)
	})
}

func insertOutbox(ctx context.Context, tx *sql.Tx, aggregateType, aggregateID, eventType string, payload OutboxPayload, at time.Time) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		aggregateType,
		aggregateID,
		eventType,
		payloadBytes,
		at,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// MarkVerified upserts the verified flag. A conflicting row keeps its original
// verified_at, which RETURNING hands back to the caller.
func (s *Store) MarkVerified(ctx context.Context, userID domain.UserID, at time.Time) (audit.Record, error) {
	var rec audit.Record
	var uid string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO verification_records (user_id, verified, verified_at)
		VALUES ($1, TRUE, $2)
		ON CONFLICT (user_id) DO UPDATE SET verified = TRUE
		RETURNING user_id, verified, verified_at
	`, userID.String(), at).Scan(&uid, &rec.Verified, &rec.VerifiedAt)
	if err != nil {
		return audit.Record{}, fmt.Errorf("upsert verification record: %w", err)
	}
	rec.UserID = domain.UserID(uid)
	return rec, nil
}

func (s *Store) Record(ctx context.Context, userID domain.UserID) (audit.Record, error) {
	rec := audit.Record{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT verified, verified_at FROM verification_records WHERE user_id = $1
	`, userID.String()).Scan(&rec.Verified, &rec.VerifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Record{}, fmt.Errorf("verification record for %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return audit.Record{}, fmt.Errorf("find verification record: %w", err)
	}
	return rec, nil
}

func (s *Store) IsVerified(ctx context.Context, userID domain.UserID) (bool, error) {
	var verified bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM verification_records WHERE user_id = $1 AND verified)
	`, userID.String()).Scan(&verified)
	if err != nil {
		return false, fmt.Errorf("check verification record: %w", err)
	}
	return verified, nil
}

// List merges attempts and actions newest first. Each branch is limited
// separately so both can use their created_at indexes.
func (s *Store) List(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	q = q.Normalize()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, action, user_id, actor_id, group_id, username, success, details, created_at
		FROM (
			(SELECT id, 'attempt' AS kind, 'VERIFICATION_ATTEMPT' AS action, user_id, '' AS actor_id,
			        group_id, username, success, reason AS details, created_at
			 FROM audit_attempts
			 WHERE ($1::text = '' OR group_id = $1::text)
			 ORDER BY created_at DESC
			 LIMIT $2)
			UNION ALL
			(SELECT id, 'action' AS kind, action, user_id, actor_id,
			        group_id, '' AS username, success, details, created_at
			 FROM audit_actions
			 WHERE ($1::text = '' OR group_id = $1::text)
			 ORDER BY created_at DESC
			 LIMIT $2)
		) merged
		ORDER BY created_at DESC
		LIMIT $2
	`, q.GroupID.String(), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var (
			e                              audit.Entry
			kind, userID, actorID, groupID string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Action, &userID, &actorID, &groupID,
			&e.Username, &e.Success, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Kind = audit.Kind(kind)
		e.UserID = domain.UserID(userID)
		e.ActorID = domain.UserID(actorID)
		e.GroupID = domain.GroupID(groupID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func (s *Store) Stats(ctx context.Context, since time.Time) (audit.Stats, error) {
	stats := audit.Stats{Since: since}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM verification_records WHERE verified),
			(SELECT COUNT(*) FROM audit_attempts WHERE NOT success AND created_at >= $1)
	`, since).Scan(&stats.TotalVerified, &stats.FailedInWindow)
	if err != nil {
		return audit.Stats{}, fmt.Errorf("query verification stats: %w", err)
	}
	return stats, nil
}
