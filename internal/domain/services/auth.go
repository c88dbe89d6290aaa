package services

import (
	"context"

	"braindump/internal/domain/models"
)

// ResourceAuthorizer decides whether a user may act on a stored resource.
// Handlers and services call it before reading or writing on a user's
// behalf.
type ResourceAuthorizer interface {
	// AuthorizeDocument returns the document when userID owns it. A missing
	// document and one owned by someone else both yield domain.ErrNotFound.
	AuthorizeDocument(ctx context.Context, userID, documentID string) (*models.Document, error)
}
