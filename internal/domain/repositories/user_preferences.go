package repositories

import (
	"context"

	"github.com/google/uuid"

	"braindump/internal/domain/models"
)

// UserPreferencesRepository persists the per-user preferences document
type UserPreferencesRepository interface {
	// GetByUserID returns nil and no error when the user has no row yet
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error)

	// Upsert inserts or replaces the user's row and refreshes prefs from it
	Upsert(ctx context.Context, prefs *models.UserPreferences) error
}
