package transform

import (
	"context"
	"log/slog"
	"strings"

	"braindump/internal/contenthash"
	"braindump/internal/domain/models"
	"braindump/internal/domain/services"
)

// ServiceConfig holds the collaborators of a Service. Only Logger is required.
type ServiceConfig struct {
	Generator      Generator
	Cache          Cache
	Tokens         *TokenCounter
	MaxInputTokens int
	Logger         *slog.Logger
}

// Service implements services.TransformService.
type Service struct {
	generator      Generator
	cache          Cache
	tokens         *TokenCounter
	maxInputTokens int
	logger         *slog.Logger
}

var _ services.TransformService = (*Service)(nil)

// NewService creates a transform service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator:      cfg.Generator,
		cache:          cfg.Cache,
		tokens:         cfg.Tokens,
		maxInputTokens: cfg.MaxInputTokens,
		logger:         logger.With("component", "transform"),
	}
}

// Model returns the configured model, or "" in degraded mode.
func (s *Service) Model() string {
	if s.generator == nil {
		return ""
	}
	return s.generator.Model()
}

// Transform restructures raw notes. It never fails: every error path yields
// the degraded document carrying the notes unchanged.
func (s *Service) Transform(ctx context.Context, raw string) (result models.ProcessedDocument) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("transform panicked", "panic", r)
			result = models.DegradedDocument(raw)
		}
	}()

	if s.generator == nil || strings.TrimSpace(raw) == "" {
		return models.DegradedDocument(raw)
	}

	if s.maxInputTokens > 0 {
		if n := s.tokens.Count(raw); n > s.maxInputTokens {
			s.logger.Warn("notes exceed input token budget, skipping model call",
				"tokens", n,
				"max_tokens", s.maxInputTokens,
			)
			return models.DegradedDocument(raw)
		}
	}

	model := s.generator.Model()
	hash := contenthash.Hash(raw)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, hash, model)
		if err != nil {
			s.logger.Warn("transform cache read failed", "error", err)
		} else if ok {
			s.logger.Debug("transform cache hit", "hash", hash, "model", model)
			return *cached
		}
	}

	doc, err := s.generator.Generate(ctx, raw)
	if err != nil {
		s.logger.Warn("transform failed, returning notes unchanged",
			"model", model,
			"error", err,
		)
		return models.DegradedDocument(raw)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, hash, model, doc); err != nil {
			s.logger.Warn("transform cache write failed", "error", err)
		}
	}

	s.logger.Debug("transform completed",
		"model", model,
		"blocks", len(doc.Blocks),
		"title", doc.Title,
	)
	return *doc
}
