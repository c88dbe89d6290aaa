package models

import (
	"fmt"

	"braindump/internal/domain"
)

// Theme is a closed union of color scheme preferences. Every variant must
// implement Next, so adding a theme without a cycle position fails to compile.
type Theme interface {
	String() string
	// Next returns the theme that follows in the toggle cycle
	// dark -> light -> system -> dark.
	Next() Theme
	sealed()
}

type (
	systemTheme struct{}
	darkTheme   struct{}
	lightTheme  struct{}
)

var (
	ThemeSystem Theme = systemTheme{}
	ThemeDark   Theme = darkTheme{}
	ThemeLight  Theme = lightTheme{}
)

// DefaultTheme follows the OS setting.
var DefaultTheme = ThemeSystem

func (systemTheme) String() string { return "system" }
func (darkTheme) String() string   { return "dark" }
func (lightTheme) String() string  { return "light" }

func (darkTheme) Next() Theme   { return ThemeLight }
func (lightTheme) Next() Theme  { return ThemeSystem }
func (systemTheme) Next() Theme { return ThemeDark }

func (systemTheme) sealed() {}
func (darkTheme) sealed()   {}
func (lightTheme) sealed()  {}

// ParseTheme maps a stored value onto a Theme. Unknown values are a
// validation error rather than a silent default.
func ParseTheme(s string) (Theme, error) {
	switch s {
	case "system":
		return ThemeSystem, nil
	case "dark":
		return ThemeDark, nil
	case "light":
		return ThemeLight, nil
	}
	return nil, fmt.Errorf("%w: unknown theme %q", domain.ErrValidation, s)
}
