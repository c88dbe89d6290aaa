package services

import (
	"context"

	"braindump/internal/changefeed"
	"braindump/internal/domain/models"
)

// DocumentStore is the persistence boundary the session controller and the
// REST handlers work against. Every method may fail; failures are returned,
// never panicked.
type DocumentStore interface {
	// List returns the owner's documents ordered by updatedAt descending.
	// An empty slice is a valid result.
	List(ctx context.Context, ownerID string) ([]models.Document, error)

	// Get returns a document or an error wrapping domain.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Document, error)

	// Latest returns the owner's most recently updated document.
	Latest(ctx context.Context, ownerID string) (*models.Document, error)

	// Create stores doc for ownerID; id and timestamps are assigned by the store.
	Create(ctx context.Context, ownerID string, doc *models.Document) (*models.Document, error)

	// Update writes every mutable field of doc and returns the stored version.
	Update(ctx context.Context, doc *models.Document) (*models.Document, error)

	// Delete removes a document, reporting false when it did not exist.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteAndEnsure deletes a document and, in the same transaction, creates
	// an empty one if the owner has none left. The created document is nil
	// when others remain.
	DeleteAndEnsure(ctx context.Context, ownerID, id string) (*models.Document, error)

	// SubscribeToChanges delivers a ChangeEvent whenever any of the owner's
	// documents changes. Closing the subscription unsubscribes.
	SubscribeToChanges(ctx context.Context, ownerID string) (*changefeed.Subscription, error)
}

// TransformService restructures raw notes into a titled list of blocks.
// Transform never fails: on any problem it returns the degraded document.
type TransformService interface {
	Transform(ctx context.Context, raw string) models.ProcessedDocument
}

// ProcessOutcome reports what DocumentProcessor.Process did.
type ProcessOutcome string

const (
	ProcessApplied   ProcessOutcome = "processed"
	ProcessTooShort  ProcessOutcome = "too_short"
	ProcessUnchanged ProcessOutcome = "unchanged"
	// ProcessStale means the content changed while the transform ran; the
	// result was discarded.
	ProcessStale ProcessOutcome = "stale"
)

// DocumentProcessor runs the transform pipeline for one stored document.
type DocumentProcessor interface {
	// Process transforms the owner's document and stores the result. The
	// returned document is the current stored version.
	Process(ctx context.Context, ownerID, id string) (*models.Document, ProcessOutcome, error)
}
