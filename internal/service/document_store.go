package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"braindump/internal/changefeed"
	"braindump/internal/config"
	"braindump/internal/domain"
	"braindump/internal/domain/models"
	"braindump/internal/domain/repositories"
	"braindump/internal/domain/services"
)

// documentStore implements services.DocumentStore on a repository and
// publishes a ChangeEvent after every successful mutation.
type documentStore struct {
	repo      repositories.DocumentRepository
	txManager repositories.TransactionManager
	broker    changefeed.Broker
	logger    *slog.Logger
}

// NewDocumentStore creates the document store
func NewDocumentStore(
	repo repositories.DocumentRepository,
	txManager repositories.TransactionManager,
	broker changefeed.Broker,
	logger *slog.Logger,
) services.DocumentStore {
	return &documentStore{
		repo:      repo,
		txManager: txManager,
		broker:    broker,
		logger:    logger,
	}
}

// List returns the owner's documents, newest first
func (s *documentStore) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Get retrieves a document by ID
func (s *documentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.repo.GetByID(ctx, id)
}

// Latest returns the owner's most recently updated document
func (s *documentStore) Latest(ctx context.Context, ownerID string) (*models.Document, error) {
	return s.repo.GetLatest(ctx, ownerID)
}

// Create stores a new document for ownerID
func (s *documentStore) Create(ctx context.Context, ownerID string, doc *models.Document) (*models.Document, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}

	created := doc.Clone()
	created.OwnerID = ownerID
	if created.Title == "" {
		created.Title = models.DefaultDocumentTitle
	}
	if err := validateDocument(created); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, created); err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		"id", created.ID,
		"owner_id", ownerID,
		"content_length", len(created.Content),
	)
	s.publish(ctx, created.OwnerID, created.ID, models.ChangeCreated)

	return created, nil
}

// Update writes every mutable field of doc
func (s *documentStore) Update(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrValidation)
	}

	updated := doc.Clone()
	if err := validateDocument(updated); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}

	s.logger.Debug("document updated",
		"id", updated.ID,
		"content_length", len(updated.Content),
		"processed", updated.ProcessedContent != nil,
	)
	s.publish(ctx, updated.OwnerID, updated.ID, models.ChangeUpdated)

	return updated, nil
}

// Delete removes a document
func (s *documentStore) Delete(ctx context.Context, id string) (bool, error) {
	ownerID, deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	s.logger.Info("document deleted", "id", id, "owner_id", ownerID)
	s.publish(ctx, ownerID, id, models.ChangeDeleted)

	return true, nil
}

// DeleteAndEnsure deletes id and guarantees the owner keeps one document
func (s *documentStore) DeleteAndEnsure(ctx context.Context, ownerID, id string) (*models.Document, error) {
	var replacement *models.Document

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		doc, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if doc.OwnerID != ownerID {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}

		if _, deleted, err := s.repo.Delete(txCtx, id); err != nil {
			return err
		} else if !deleted {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}

		remaining, err := s.repo.CountByOwner(txCtx, ownerID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		replacement = models.NewDocument(ownerID)
		return s.repo.Create(txCtx, replacement)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document deleted",
		"id", id,
		"owner_id", ownerID,
		"replacement_created", replacement != nil,
	)
	s.publish(ctx, ownerID, id, models.ChangeDeleted)
	if replacement != nil {
		s.publish(ctx, ownerID, replacement.ID, models.ChangeCreated)
	}

	return replacement, nil
}

// SubscribeToChanges subscribes to the owner's change feed
func (s *documentStore) SubscribeToChanges(ctx context.Context, ownerID string) (*changefeed.Subscription, error) {
	sub, err := s.broker.Subscribe(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("subscribe to changes: %w", err)
	}
	return sub, nil
}

// publish announces a mutation. A failed publish only delays other
// sessions until their next refetch, so it is logged and not returned.
func (s *documentStore) publish(ctx context.Context, ownerID, documentID string, op models.ChangeOp) {
	event := models.ChangeEvent{
		OwnerID:    ownerID,
		DocumentID: documentID,
		Op:         op,
		At:         time.Now(),
	}
	if err := s.broker.Publish(ctx, event); err != nil {
		s.logger.Warn("publish change event failed",
			"owner_id", ownerID,
			"document_id", documentID,
			"op", op,
			"error", err,
		)
	}
}

// validateDocument checks lengths and block types before a write
func validateDocument(doc *models.Document) error {
	err := validation.ValidateStruct(doc,
		validation.Field(&doc.Title, validation.RuneLength(0, config.MaxDocumentTitleLength)),
		validation.Field(&doc.Content, validation.Length(0, config.MaxDocumentContentLength)),
		validation.Field(&doc.ProcessedBlocks,
			validation.Length(0, config.MaxProcessedBlocks),
			validation.Each(validation.By(validateBlock)),
		),
	)
	if err != nil {
		var errs validation.Errors
		if errors.As(err, &errs) {
			return fmt.Errorf("%w: %s", domain.ErrValidation, errs.Error())
		}
		return err
	}
	return nil
}

func validateBlock(value interface{}) error {
	block, ok := value.(models.ContentBlock)
	if !ok {
		return errors.New("must be a content block")
	}
	if !block.Type.Valid() {
		return fmt.Errorf("unknown block type %q", block.Type)
	}
	return nil
}
