package handler

import (
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"braindump/internal/config"
	"braindump/internal/domain/services"
	"braindump/internal/httputil"
)

// TransformRequest is the body of POST /api/transform
type TransformRequest struct {
	Content string `json:"content"`
}

// Validate bounds the raw text like a stored document
func (r TransformRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Length(0, config.MaxDocumentContentLength)),
	)
}

// TransformHandler exposes the stateless transform
type TransformHandler struct {
	transformer services.TransformService
	logger      *slog.Logger
}

// NewTransformHandler creates a new transform handler
func NewTransformHandler(transformer services.TransformService, logger *slog.Logger) *TransformHandler {
	return &TransformHandler{transformer: transformer, logger: logger}
}

// Transform restructures raw notes. It never fails once the body is valid:
// problems upstream yield the raw text as a single block.
// POST /api/transform
func (h *TransformHandler) Transform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.transformer.Transform(r.Context(), req.Content)
	httputil.RespondJSON(w, http.StatusOK, result)
}
