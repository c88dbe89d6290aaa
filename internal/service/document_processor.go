package service

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"braindump/internal/contenthash"
	"braindump/internal/domain/models"
	"braindump/internal/domain/services"
	"braindump/internal/service/auth"
)

// documentProcessor applies the same skip rules as a live session: notes
// shorter than minLength are left alone, and a document whose processed
// output already matches its content is not transformed again.
type documentProcessor struct {
	store       services.DocumentStore
	authz       services.ResourceAuthorizer
	transformer services.TransformService
	minLength   int
	logger      *slog.Logger
}

// NewDocumentProcessor creates the server-side transform pipeline
func NewDocumentProcessor(
	store services.DocumentStore,
	transformer services.TransformService,
	minLength int,
	logger *slog.Logger,
) services.DocumentProcessor {
	return &documentProcessor{
		store:       store,
		authz:       auth.NewOwnerBasedAuthorizer(store, logger),
		transformer: transformer,
		minLength:   minLength,
		logger:      logger,
	}
}

// Process transforms one document and stores the result
func (p *documentProcessor) Process(ctx context.Context, ownerID, id string) (*models.Document, services.ProcessOutcome, error) {
	doc, err := p.authz.AuthorizeDocument(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}

	if utf8.RuneCountInString(doc.Content) < p.minLength {
		return doc, services.ProcessTooShort, nil
	}
	if doc.ProcessedContent != nil && contenthash.Matches(doc.Content, doc.ContentHash) {
		return doc, services.ProcessUnchanged, nil
	}

	hash := contenthash.Hash(doc.Content)
	result := p.transformer.Transform(ctx, doc.Content)

	// Re-read so an edit made during the transform is not overwritten
	current, err := p.authz.AuthorizeDocument(ctx, ownerID, id)
	if err != nil {
		return nil, "", err
	}
	if current.Content != doc.Content {
		p.logger.Debug("discarding transform for changed document", "id", id)
		return current, services.ProcessStale, nil
	}

	current.ApplyProcessed(&result, hash)
	updated, err := p.store.Update(ctx, current)
	if err != nil {
		return nil, "", err
	}

	p.logger.Info("document processed",
		"id", id,
		"blocks", len(result.Blocks),
	)
	return updated, services.ProcessApplied, nil
}
