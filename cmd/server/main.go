package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"braindump/internal/app"
	"braindump/internal/auth"
	"braindump/internal/config"
	"braindump/internal/handler"
	"braindump/internal/handler/sse"
	"braindump/internal/middleware"
	"braindump/internal/session"
)

func main() {
	// Load .env file (ignore error if not exists)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting braindump", "environment", cfg.Environment, "version", cfg.AppVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	if _, err := a.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	a.StartChangeListener(ctx)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	origins := strings.Split(cfg.CORSOrigins, ",")

	// Handlers
	healthHandler := handler.NewHealthHandler(cfg.AppVersion)
	docHandler := handler.NewDocumentHandler(a.Documents, a.Processor, logger)
	transformHandler := handler.NewTransformHandler(a.Transform, logger)
	changesHandler := handler.NewChangesHandler(a.Documents, sse.DefaultConfig(), logger)
	sessionHandler := handler.NewSessionHandler(
		handler.NewSessionFactory(cfg, session.Config{
			Store:       a.Documents,
			Transformer: a.Transform,
			Logger:      logger,
		}),
		allowOrigins(origins),
		logger,
	)
	userPrefsHandler := handler.NewUserPreferencesHandler(a.Preferences, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", healthHandler.Health)

	// Document routes
	mux.HandleFunc("GET /api/documents", docHandler.ListDocuments)
	mux.HandleFunc("POST /api/documents", docHandler.CreateDocument)
	mux.HandleFunc("GET /api/documents/latest", docHandler.GetLatestDocument)
	mux.HandleFunc("GET /api/documents/changes", changesHandler.StreamChanges) // SSE
	mux.HandleFunc("GET /api/documents/{id}", docHandler.GetDocument)
	mux.HandleFunc("PUT /api/documents/{id}", docHandler.UpdateDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", docHandler.DeleteDocument)
	mux.HandleFunc("POST /api/documents/{id}/process", docHandler.ProcessDocument)

	mux.HandleFunc("POST /api/transform", transformHandler.Transform)

	// Live editing session (WebSocket)
	mux.HandleFunc("GET /api/session", sessionHandler.ServeSession)

	// User preferences routes
	mux.HandleFunc("GET /api/users/me/preferences", userPrefsHandler.GetPreferences)
	mux.HandleFunc("PATCH /api/users/me/preferences", userPrefsHandler.UpdatePreferences)
	mux.HandleFunc("POST /api/users/me/preferences/theme/cycle", userPrefsHandler.CycleTheme)

	// Order: CORS → Recovery → SessionGate → Routes
	var h http.Handler = mux
	h = middleware.SessionGate(jwtVerifier, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS must see OPTIONS pre-flight requests before the gate
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // Disabled for SSE and WebSocket connections
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// allowOrigins accepts WebSocket upgrades from the CORS origins, and from
// clients that send no Origin header at all.
func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}
