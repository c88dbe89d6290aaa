package repositories

import (
	"context"

	"braindump/internal/domain/models"
)

// DocumentRepository defines data access operations for documents
type DocumentRepository interface {
	// ListByOwner returns an owner's documents, most recently updated first
	ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error)

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// GetLatest returns the owner's most recently updated document
	GetLatest(ctx context.Context, ownerID string) (*models.Document, error)

	// CountByOwner returns how many documents the owner has
	CountByOwner(ctx context.Context, ownerID string) (int, error)

	// Create inserts doc and fills in ID, CreatedAt and UpdatedAt
	Create(ctx context.Context, doc *models.Document) error

	// Update writes the mutable fields of doc and refreshes UpdatedAt.
	// ID, CreatedAt and the owner are never changed.
	Update(ctx context.Context, doc *models.Document) error

	// Delete removes a document. It returns the owner of the deleted row and
	// false when nothing matched.
	Delete(ctx context.Context, id string) (ownerID string, deleted bool, err error)
}
