package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"warden/internal/group/models"
	"warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore persists group configurations in the group_configs table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const configColumns = `group_id, name, access_marker_id, auto_grant_enabled, prompt_channel_id,
	min_account_age_days, max_attempts_per_window, window_seconds, session_timeout_seconds,
	created_at, updated_at`

func (s *PostgresStore) Find(ctx context.Context, groupID domain.GroupID) (*models.Config, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM group_configs WHERE group_id = $1`, groupID.String())
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find group config: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) Save(ctx context.Context, cfg *models.Config) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_configs (`+configColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (group_id) DO UPDATE SET
			name = EXCLUDED.name,
			access_marker_id = EXCLUDED.access_marker_id,
			auto_grant_enabled = EXCLUDED.auto_grant_enabled,
			prompt_channel_id = EXCLUDED.prompt_channel_id,
			min_account_age_days = EXCLUDED.min_account_age_days,
			max_attempts_per_window = EXCLUDED.max_attempts_per_window,
			window_seconds = EXCLUDED.window_seconds,
			session_timeout_seconds = EXCLUDED.session_timeout_seconds,
			updated_at = EXCLUDED.updated_at
	`,
		cfg.GroupID.String(),
		cfg.Name,
		cfg.AccessMarkerID.String(),
		cfg.AutoGrantEnabled,
		cfg.PromptChannelID.String(),
		cfg.MinAccountAgeDays,
		cfg.MaxAttemptsPerWindow,
		cfg.WindowSeconds,
		cfg.SessionTimeoutSeconds,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert group config: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAutoGrant(ctx context.Context) ([]*models.Config, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+configColumns+`
		FROM group_configs
		WHERE auto_grant_enabled AND access_marker_id <> ''
		ORDER BY group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list auto-grant groups: %w", err)
	}
	defer rows.Close()

	configs := make([]*models.Config, 0)
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group configs: %w", err)
	}
	return configs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConfig(row scanner) (*models.Config, error) {
	var (
		cfg                        models.Config
		groupID, markerID, channel string
	)
	err := row.Scan(
		&groupID,
		&cfg.Name,
		&markerID,
		&cfg.AutoGrantEnabled,
		&channel,
		&cfg.MinAccountAgeDays,
		&cfg.MaxAttemptsPerWindow,
		&cfg.WindowSeconds,
		&cfg.SessionTimeoutSeconds,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cfg.GroupID = domain.GroupID(groupID)
	cfg.AccessMarkerID = domain.MarkerID(markerID)
	cfg.PromptChannelID = domain.ChannelID(channel)
	return &cfg, nil
}
