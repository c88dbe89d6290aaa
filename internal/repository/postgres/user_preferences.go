package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"braindump/internal/domain/models"
	"braindump/internal/domain/repositories"
)

const preferencesColumns = `user_id, preferences, created_at, updated_at`

// PostgresUserPreferencesRepository stores one JSONB preferences row per user
type PostgresUserPreferencesRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewUserPreferencesRepository creates a new preferences repository
func NewUserPreferencesRepository(config *RepositoryConfig) repositories.UserPreferencesRepository {
	return &PostgresUserPreferencesRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

func scanPreferences(row pgx.Row, prefs *models.UserPreferences) error {
	return row.Scan(&prefs.UserID, &prefs.Preferences, &prefs.CreatedAt, &prefs.UpdatedAt)
}

// GetByUserID returns (nil, nil) for a user who has never saved preferences
func (r *PostgresUserPreferencesRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, preferencesColumns, r.tables.UserPreferences)

	var prefs models.UserPreferences
	err := scanPreferences(GetExecutor(ctx, r.pool).QueryRow(ctx, query, userID), &prefs)
	switch {
	case IsPgNoRowsError(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get user preferences: %w", err)
	}
	return &prefs, nil
}

// Upsert writes the whole preferences document. created_at keeps its first
// value; the stored row is scanned back into prefs.
func (r *PostgresUserPreferencesRepository) Upsert(ctx context.Context, prefs *models.UserPreferences) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (user_id, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET preferences = EXCLUDED.preferences, updated_at = EXCLUDED.updated_at
		RETURNING %[2]s
	`, r.tables.UserPreferences, preferencesColumns)

	row := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		prefs.UserID, prefs.Preferences, prefs.CreatedAt, prefs.UpdatedAt)
	if err := scanPreferences(row, prefs); err != nil {
		return fmt.Errorf("upsert user preferences: %w", err)
	}

	r.logger.Debug("preferences saved", "user_id", prefs.UserID)
	return nil
}
