package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"braindump/internal/domain"
	"braindump/internal/domain/models"
	"braindump/internal/domain/repositories"
	"braindump/internal/domain/services"
)

// UserPreferencesService implements the UserPreferencesService interface
type UserPreferencesService struct {
	prefsRepo repositories.UserPreferencesRepository
	logger    *slog.Logger
}

// NewUserPreferencesService creates a new user preferences service
func NewUserPreferencesService(
	prefsRepo repositories.UserPreferencesRepository,
	logger *slog.Logger,
) services.UserPreferencesService {
	return &UserPreferencesService{
		prefsRepo: prefsRepo,
		logger:    logger,
	}
}

// getDefaultPreferences returns defaults for a user with no stored row
func (s *UserPreferencesService) getDefaultPreferences(userID uuid.UUID) (*models.UserPreferences, error) {
	now := time.Now()
	prefs := &models.UserPreferences{
		UserID:      userID,
		Preferences: models.JSONMap{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := prefs.SetUI(models.DefaultUIPreferences()); err != nil {
		return nil, err
	}
	return prefs, nil
}

// load returns stored preferences or defaults
func (s *UserPreferencesService) load(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error) {
	prefs, err := s.prefsRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if prefs == nil {
		s.logger.Debug("no preferences found, using defaults", "user_id", userID)
		return s.getDefaultPreferences(userID)
	}
	if prefs.Preferences == nil {
		prefs.Preferences = models.JSONMap{}
	}
	return prefs, nil
}

// GetPreferences retrieves preferences for a user
func (s *UserPreferencesService) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error) {
	return s.load(ctx, userID)
}

// UpdatePreferences applies the provided fields and persists the result
func (s *UserPreferencesService) UpdatePreferences(ctx context.Context, userID uuid.UUID, req *models.UpdatePreferencesRequest) (*models.UserPreferences, error) {
	if err := validateUpdatePreferences(req); err != nil {
		return nil, err
	}

	prefs, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	ui, err := prefs.GetUI()
	if err != nil {
		return nil, fmt.Errorf("read ui namespace: %w", err)
	}

	if req.Theme != nil {
		theme, err := models.ParseTheme(*req.Theme)
		if err != nil {
			return nil, err
		}
		ui.Theme = theme.String()
	}

	// One side of the split determines the other.
	switch {
	case req.EditorSize != nil && req.PreviewSize != nil:
		if *req.EditorSize+*req.PreviewSize != 100 {
			return nil, fmt.Errorf("%w: editor_size and preview_size must sum to 100", domain.ErrValidation)
		}
		ui.EditorSize, ui.PreviewSize = req.EditorSize, req.PreviewSize
	case req.EditorSize != nil:
		preview := 100 - *req.EditorSize
		ui.EditorSize, ui.PreviewSize = req.EditorSize, &preview
	case req.PreviewSize != nil:
		editor := 100 - *req.PreviewSize
		ui.EditorSize, ui.PreviewSize = &editor, req.PreviewSize
	}

	if err := prefs.SetUI(ui); err != nil {
		return nil, fmt.Errorf("update ui namespace: %w", err)
	}

	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}

	s.logger.Info("user preferences updated",
		"user_id", userID,
		"has_theme", req.Theme != nil,
		"has_split", req.EditorSize != nil || req.PreviewSize != nil,
	)

	return prefs, nil
}

// CycleTheme moves the stored theme to the next one in the cycle
func (s *UserPreferencesService) CycleTheme(ctx context.Context, userID uuid.UUID) (*models.UserPreferences, error) {
	prefs, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	ui, err := prefs.GetUI()
	if err != nil {
		return nil, fmt.Errorf("read ui namespace: %w", err)
	}

	current, err := models.ParseTheme(ui.Theme)
	if err != nil {
		// A stored value outside the union means something wrote around validation.
		return nil, fmt.Errorf("stored theme for %s: %w", userID, err)
	}
	ui.Theme = current.Next().String()

	if err := prefs.SetUI(ui); err != nil {
		return nil, fmt.Errorf("update ui namespace: %w", err)
	}
	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}

	s.logger.Info("theme toggled", "user_id", userID, "from", current, "to", ui.Theme)
	return prefs, nil
}

func (s *UserPreferencesService) save(ctx context.Context, prefs *models.UserPreferences) error {
	prefs.UpdatedAt = time.Now()
	if err := s.prefsRepo.Upsert(ctx, prefs); err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

func validateUpdatePreferences(req *models.UpdatePreferencesRequest) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.EditorSize, validation.Min(models.MinPaneSize), validation.Max(models.MaxPaneSize)),
		validation.Field(&req.PreviewSize, validation.Min(models.MinPaneSize), validation.Max(models.MaxPaneSize)),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	return nil
}
