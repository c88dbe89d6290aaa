package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Split pane defaults and bounds, in percent of the canvas width.
const (
	DefaultPaneSize = 50
	MinPaneSize     = 10
	MaxPaneSize     = 90
)

// JSONMap is a type alias for JSONB columns
type JSONMap map[string]interface{}

// UserPreferences represents user-specific settings.
// All preferences are stored in a single JSONB column with namespaced structure
type UserPreferences struct {
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Preferences JSONMap   `json:"preferences" db:"preferences"` // Namespaced JSONB: {ui}
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// UIPreferences represents the ui namespace in preferences
type UIPreferences struct {
	Theme       string `json:"theme"`        // "system", "dark", "light"
	EditorSize  *int   `json:"editor_size"`  // Pointer to allow null
	PreviewSize *int   `json:"preview_size"` // Pointer to allow null
}

// DefaultUIPreferences returns the ui namespace for a user who never changed it.
func DefaultUIPreferences() *UIPreferences {
	editor, preview := DefaultPaneSize, DefaultPaneSize
	return &UIPreferences{
		Theme:       DefaultTheme.String(),
		EditorSize:  &editor,
		PreviewSize: &preview,
	}
}

// GetUI extracts the ui namespace from preferences
func (up *UserPreferences) GetUI() (*UIPreferences, error) {
	if up.Preferences == nil {
		return DefaultUIPreferences(), nil
	}

	uiData, ok := up.Preferences["ui"]
	if !ok {
		return DefaultUIPreferences(), nil
	}

	data, err := json.Marshal(uiData)
	if err != nil {
		return nil, err
	}

	ui := DefaultUIPreferences()
	if err := json.Unmarshal(data, ui); err != nil {
		return nil, err
	}

	return ui, nil
}

// SetUI sets the ui namespace in preferences
func (up *UserPreferences) SetUI(ui *UIPreferences) error {
	if up.Preferences == nil {
		up.Preferences = JSONMap{}
	}

	data, err := json.Marshal(ui)
	if err != nil {
		return err
	}

	var uiMap map[string]interface{}
	if err := json.Unmarshal(data, &uiMap); err != nil {
		return err
	}

	up.Preferences["ui"] = uiMap
	return nil
}

// UpdatePreferencesRequest represents the request to update user preferences.
// Only provided fields are updated.
type UpdatePreferencesRequest struct {
	Theme       *string `json:"theme"`
	EditorSize  *int    `json:"editor_size"`
	PreviewSize *int    `json:"preview_size"`
}
