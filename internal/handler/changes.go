package handler

import (
	"log/slog"
	"net/http"

	"braindump/internal/domain/services"
	"braindump/internal/handler/sse"
	"braindump/internal/httputil"
)

// ChangesHandler streams the user's document change feed as SSE
type ChangesHandler struct {
	store  services.DocumentStore
	config *sse.Config
	logger *slog.Logger
}

// NewChangesHandler creates a change feed handler. A nil config uses
// sse.DefaultConfig.
func NewChangesHandler(store services.DocumentStore, config *sse.Config, logger *slog.Logger) *ChangesHandler {
	if config == nil {
		config = sse.DefaultConfig()
	}
	return &ChangesHandler{store: store, config: config, logger: logger}
}

// StreamChanges sends one "change" event per document mutation until the
// client disconnects
// GET /api/documents/changes
func (h *ChangesHandler) StreamChanges(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	sub, err := h.store.SubscribeToChanges(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	defer sub.Close()

	stream, err := sse.NewStream(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	keepAlive := sse.NewTickerKeepAlive(h.config.KeepAliveInterval)
	keepAliveDone := keepAlive.Start(stream, h.logger)
	defer keepAlive.Stop()

	h.logger.Debug("change stream opened", "user_id", userID)
	defer h.logger.Debug("change stream closed", "user_id", userID)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAliveDone:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := stream.WriteEvent("change", ev); err != nil {
				h.logger.Debug("client disconnected during event write", "user_id", userID, "error", err)
				return
			}
		}
	}
}
