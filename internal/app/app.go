// Package app wires the store, change feed and transform service from
// configuration. The server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"braindump/internal/capabilities"
	"braindump/internal/changefeed"
	"braindump/internal/config"
	"braindump/internal/domain/services"
	"braindump/internal/repository/postgres"
	"braindump/internal/service"
	"braindump/internal/service/transform"
)

// App holds the long-lived dependencies of the process.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Tables *postgres.TableNames

	Broker      changefeed.Broker
	Documents   services.DocumentStore
	Processor   services.DocumentProcessor
	Transform   *transform.Service
	Preferences services.UserPreferencesService

	repoConfig *postgres.RepositoryConfig
}

// Open connects to Postgres and, when configured, Redis, and builds the
// services on top. Close releases everything Open acquired.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.SupabaseDBURL == "" {
		return nil, fmt.Errorf("SUPABASE_DB_URL is required")
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	tables := postgres.NewTableNames(cfg.TablePrefix)
	logger.Info("database connected", "table_prefix", cfg.TablePrefix)

	broker, redisClient, err := NewBroker(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	transformService, err := NewTransformService(cfg, redisClient, logger)
	if err != nil {
		broker.Close()
		pool.Close()
		return nil, err
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	docRepo := postgres.NewDocumentRepository(repoConfig)
	prefsRepo := postgres.NewUserPreferencesRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	documents := service.NewDocumentStore(docRepo, txManager, broker, logger)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Tables:      tables,
		Broker:      broker,
		Documents:   documents,
		Processor:   service.NewDocumentProcessor(documents, transformService, cfg.MinTransformLength, logger),
		Transform:   transformService,
		Preferences: service.NewUserPreferencesService(prefsRepo, logger),
		repoConfig:  repoConfig,
	}, nil
}

// NewBroker returns a Redis broker when REDIS_URL is set, otherwise an
// in-process one. The Redis client is nil for the in-process broker.
func NewBroker(cfg *config.Config, logger *slog.Logger) (changefeed.Broker, *redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-process change feed")
		return changefeed.NewMemoryBroker(logger), nil, nil
	}

	broker, err := changefeed.NewRedisBroker(cfg.RedisURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("using redis change feed")
	return broker, broker.Client(), nil
}

// NewTransformService builds the AI transform service. redisClient enables
// the result cache and may be nil.
func NewTransformService(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) (*transform.Service, error) {
	prompts, err := transform.LoadPrompts()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	genCfg, err := fitModelLimits(cfg, logger)
	if err != nil {
		return nil, err
	}

	generator, err := transform.NewGenerator(genCfg, prompts, logger)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	serviceCfg := transform.ServiceConfig{
		Generator:      generator,
		MaxInputTokens: genCfg.AIMaxInputTokens,
		Logger:         logger,
	}
	// Loading the encoding may download it, so skip it in degraded mode
	if generator != nil {
		serviceCfg.Tokens = transform.NewTokenCounter(logger)
	}
	if redisClient != nil {
		serviceCfg.Cache = transform.NewRedisCache(redisClient, cfg.TransformCacheTTL)
	}

	svc := transform.NewService(serviceCfg)
	if model := svc.Model(); model != "" {
		logger.Info("transform service ready", "model", model, "cache", redisClient != nil)
	}
	return svc, nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) ([]string, error) {
	return postgres.Migrate(ctx, a.Pool, a.Tables, a.Logger)
}

// StartChangeListener forwards database notifications to the broker until
// ctx is cancelled. It does nothing unless PG_LISTEN is set.
func (a *App) StartChangeListener(ctx context.Context) {
	if !a.Config.PGListen {
		return
	}
	listener := postgres.NewChangeListener(a.repoConfig, a.Broker)
	go func() {
		if err := listener.Run(ctx); err != nil {
			a.Logger.Error("change listener stopped", "error", err)
		}
	}()
}

// Close releases the broker and the database pool.
func (a *App) Close() {
	if err := a.Broker.Close(); err != nil {
		a.Logger.Warn("close broker", "error", err)
	}
	a.Pool.Close()
}

// DropAll removes every managed table.
func (a *App) DropAll(ctx context.Context) error {
	return postgres.DropAll(ctx, a.Pool, a.Tables)
}

// fitModelLimits returns a copy of cfg with the token limits capped to what
// the configured model accepts. Models missing from the catalog keep the
// configured limits.
func fitModelLimits(cfg *config.Config, logger *slog.Logger) (*config.Config, error) {
	registry, err := capabilities.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("load model catalog: %w", err)
	}
	info, err := transform.ParseModel(cfg.AIModel)
	if err != nil {
		return nil, fmt.Errorf("parse AI_MODEL: %w", err)
	}

	caps, err := registry.GetModelCapabilities(info.Provider, info.Model)
	if err != nil {
		logger.Warn("model not in catalog, using configured token limits", "model", cfg.AIModel, "error", err)
		return cfg, nil
	}

	fitted := *cfg
	fitted.AIMaxInputTokens, fitted.AIMaxOutputTokens = caps.Budget(cfg.AIMaxInputTokens, cfg.AIMaxOutputTokens)
	if fitted.AIMaxOutputTokens != cfg.AIMaxOutputTokens || fitted.AIMaxInputTokens != cfg.AIMaxInputTokens {
		logger.Info("token limits capped to model",
			"model", caps.ID,
			"max_input_tokens", fitted.AIMaxInputTokens,
			"max_output_tokens", fitted.AIMaxOutputTokens,
		)
	}
	return &fitted, nil
}
