package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	AppVersion      string
	SupabaseURL     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	SupabaseKey     string // Service role key, only needed by the seed command
	CORSOrigins     string
	TablePrefix     string
	// Change feed
	RedisURL string // Empty means in-process broker
	PGListen bool   // Forward trigger notifications from Postgres
	// AI transform
	AnthropicAPIKey    string
	AIModel            string
	AIStructuredOutput bool
	AIMaxOutputTokens  int
	AIMaxInputTokens   int
	TransformCacheTTL  time.Duration
	// Session timing
	SaveDebounce           time.Duration
	TransformDebounce      time.Duration
	MinTransformLength     int
	SignificantChangeDelta int
	StoreTimeout           time.Duration
	TransformTimeout       time.Duration
	// Logging
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		AppVersion:      getEnv("APP_VERSION", "dev"),
		SupabaseURL:     supabaseURL,
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     os.Getenv("TABLE_PREFIX"),
		RedisURL:        getEnv("REDIS_URL", ""),
		PGListen:        getEnvBool("PG_LISTEN", false),
		// AI transform
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AIModel:            getEnv("AI_MODEL", "claude-haiku-4-5"),
		AIStructuredOutput: getEnvBool("AI_STRUCTURED_OUTPUT", true),
		AIMaxOutputTokens:  getEnvInt("AI_MAX_OUTPUT_TOKENS", 4096),
		AIMaxInputTokens:   getEnvInt("AI_MAX_INPUT_TOKENS", 32000),
		TransformCacheTTL:  getEnvDuration("TRANSFORM_CACHE_TTL", 24*time.Hour),
		// Session timing
		SaveDebounce:           getEnvDuration("SAVE_DEBOUNCE", 300*time.Millisecond),
		TransformDebounce:      getEnvDuration("TRANSFORM_DEBOUNCE", 1000*time.Millisecond),
		MinTransformLength:     getEnvInt("MIN_TRANSFORM_LENGTH", 110),
		SignificantChangeDelta: getEnvInt("SIGNIFICANT_CHANGE_DELTA", 10),
		StoreTimeout:           getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		TransformTimeout:       getEnvDuration("TRANSFORM_TIMEOUT", 60*time.Second),
		// Logging
		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 5),
		// Debug - default to true outside prod
		Debug: getEnvBool("DEBUG", env != "prod"),
	}
}

// LogLevel returns the slog level for the environment.
func (c *Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go durations ("300ms") or a bare number of milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}
