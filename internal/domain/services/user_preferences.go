package services

import (
	"context"

	"github.com/google/uuid"

	"braindump/internal/domain/models"
)

// UserPreferencesService defines the business logic for user preferences operations
type UserPreferencesService interface {
	// GetPreferences retrieves preferences for a user
	// Returns default preferences if none exist yet
	GetPreferences(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error)

	// UpdatePreferences applies a partial update, creating the row if needed
	UpdatePreferences(ctx context.Context, userID uuid.UUID, req *models.UpdatePreferencesRequest) (*models.UserPreferences, error)

	// CycleTheme advances the theme dark -> light -> system -> dark
	CycleTheme(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error)
}
