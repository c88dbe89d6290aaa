package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"ENVIRONMENT", "TABLE_PREFIX", "AI_MODEL", "SAVE_DEBOUNCE", "TRANSFORM_DEBOUNCE",
		"MIN_TRANSFORM_LENGTH", "SIGNIFICANT_CHANGE_DELTA", "AI_STRUCTURED_OUTPUT", "DEBUG", "APP_VERSION",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.TablePrefix != "" {
		t.Errorf("TablePrefix = %q, want empty", cfg.TablePrefix)
	}
	if cfg.AIModel != "claude-haiku-4-5" {
		t.Errorf("AIModel = %q", cfg.AIModel)
	}
	if cfg.SaveDebounce != 300*time.Millisecond {
		t.Errorf("SaveDebounce = %v", cfg.SaveDebounce)
	}
	if cfg.TransformDebounce != time.Second {
		t.Errorf("TransformDebounce = %v", cfg.TransformDebounce)
	}
	if cfg.MinTransformLength != 110 {
		t.Errorf("MinTransformLength = %d", cfg.MinTransformLength)
	}
	if cfg.SignificantChangeDelta != 10 {
		t.Errorf("SignificantChangeDelta = %d", cfg.SignificantChangeDelta)
	}
	if !cfg.AIStructuredOutput {
		t.Error("AIStructuredOutput should default to true")
	}
	if cfg.AppVersion != "dev" {
		t.Errorf("AppVersion = %q", cfg.AppVersion)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug in dev", cfg.LogLevel())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("DEBUG", "")
	t.Setenv("TABLE_PREFIX", "test_")
	t.Setenv("SAVE_DEBOUNCE", "50")
	t.Setenv("TRANSFORM_DEBOUNCE", "2s")
	t.Setenv("MIN_TRANSFORM_LENGTH", "not-a-number")
	t.Setenv("PG_LISTEN", "true")

	cfg := Load()

	if cfg.TablePrefix != "test_" {
		t.Errorf("TablePrefix = %q", cfg.TablePrefix)
	}
	if cfg.SaveDebounce != 50*time.Millisecond {
		t.Errorf("SaveDebounce = %v, want 50ms", cfg.SaveDebounce)
	}
	if cfg.TransformDebounce != 2*time.Second {
		t.Errorf("TransformDebounce = %v, want 2s", cfg.TransformDebounce)
	}
	if cfg.MinTransformLength != 110 {
		t.Errorf("MinTransformLength = %d, want default on bad input", cfg.MinTransformLength)
	}
	if !cfg.PGListen {
		t.Error("PGListen should be true")
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want info in prod", cfg.LogLevel())
	}
}
