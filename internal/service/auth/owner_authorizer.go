package auth

import (
	"context"
	"fmt"
	"log/slog"

	"braindump/internal/domain"
	"braindump/internal/domain/models"
	"braindump/internal/domain/services"
)

// OwnerBasedAuthorizer implements ResourceAuthorizer using ownership checks.
// Each document has exactly one owner and there is no sharing.
type OwnerBasedAuthorizer struct {
	store  services.DocumentStore
	logger *slog.Logger
}

// NewOwnerBasedAuthorizer creates a new ownership-based authorizer
func NewOwnerBasedAuthorizer(store services.DocumentStore, logger *slog.Logger) *OwnerBasedAuthorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OwnerBasedAuthorizer{store: store, logger: logger}
}

// AuthorizeDocument fetches the document and checks userID owns it.
// Foreign documents are reported as not found so ids do not leak.
func (a *OwnerBasedAuthorizer) AuthorizeDocument(ctx context.Context, userID, documentID string) (*models.Document, error) {
	if userID == "" {
		return nil, fmt.Errorf("no user: %w", domain.ErrUnauthorized)
	}

	doc, err := a.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != userID {
		a.logger.Debug("document belongs to another user", "id", documentID, "user_id", userID)
		return nil, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	return doc, nil
}

var _ services.ResourceAuthorizer = (*OwnerBasedAuthorizer)(nil)
