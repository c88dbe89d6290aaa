package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"braindump/internal/domain/models"
	"braindump/internal/domain/services"
	"braindump/internal/httputil"
	"braindump/internal/service/auth"
)

// DocumentHandler serves the owner-scoped document REST API
type DocumentHandler struct {
	store     services.DocumentStore
	authz     services.ResourceAuthorizer
	processor services.DocumentProcessor
	logger    *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(store services.DocumentStore, processor services.DocumentProcessor, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:     store,
		authz:     auth.NewOwnerBasedAuthorizer(store, logger),
		processor: processor,
		logger:    logger,
	}
}

// DeleteDocumentResponse is the body of DELETE /api/documents/{id}.
// Created is set when the deleted document was the owner's last one.
type DeleteDocumentResponse struct {
	DeletedID string           `json:"deletedId"`
	Created   *models.Document `json:"created"`
}

// ProcessDocumentResponse is the body of POST /api/documents/{id}/process
type ProcessDocumentResponse struct {
	Document *models.Document        `json:"document"`
	Outcome  services.ProcessOutcome `json:"outcome"`
}

// ListDocuments returns the user's documents, newest first
// GET /api/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	docs, err := h.store.List(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// CreateDocument creates a document. The body is optional.
// POST /api/documents
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req models.CreateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc := models.NewDocument(userID)
	doc.Content = req.Content
	if req.Title != nil {
		doc.Title = *req.Title
	}

	created, err := h.store.Create(r.Context(), userID, doc)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, created)
}

// GetLatestDocument returns the most recently updated document
// GET /api/documents/latest
func (h *DocumentHandler) GetLatestDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	doc, err := h.store.Latest(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// GetDocument returns one document
// GET /api/documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := PathParam(w, r, "id", "Document ID")
	if !ok {
		return
	}

	doc, err := h.authz.AuthorizeDocument(r.Context(), userID, id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// UpdateDocument applies the provided fields
// PUT /api/documents/{id}
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := PathParam(w, r, "id", "Document ID")
	if !ok {
		return
	}

	var req models.UpdateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.CheckProcessedFields(); err != nil {
		handleError(w, err)
		return
	}

	doc, err := h.authz.AuthorizeDocument(r.Context(), userID, id)
	if err != nil {
		handleError(w, err)
		return
	}

	applyUpdate(doc, &req)

	updated, err := h.store.Update(r.Context(), doc)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, updated)
}

// DeleteDocument deletes a document, creating an empty one if it was the last
// DELETE /api/documents/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := PathParam(w, r, "id", "Document ID")
	if !ok {
		return
	}

	created, err := h.store.DeleteAndEnsure(r.Context(), userID, id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, DeleteDocumentResponse{DeletedID: id, Created: created})
}

// ProcessDocument runs the AI transform for a document and stores the result
// POST /api/documents/{id}/process
func (h *DocumentHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := PathParam(w, r, "id", "Document ID")
	if !ok {
		return
	}

	doc, outcome, err := h.processor.Process(r.Context(), userID, id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ProcessDocumentResponse{Document: doc, Outcome: outcome})
}

func applyUpdate(doc *models.Document, req *models.UpdateDocumentRequest) {
	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Content != nil {
		doc.Content = *req.Content
	}
	if req.ProcessedContent != nil {
		v := *req.ProcessedContent
		doc.ProcessedContent = &v
	}
	if req.ProcessedBlocks != nil {
		doc.ProcessedBlocks = *req.ProcessedBlocks
	}
	if req.ContentHash != nil {
		if *req.ContentHash == "" {
			doc.ContentHash = nil
		} else {
			v := *req.ContentHash
			doc.ContentHash = &v
		}
	}
}
