package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"braindump/internal/domain"
	"braindump/internal/domain/models"
	"braindump/internal/domain/repositories"
)

const documentColumns = `id, user_id, title, content, processed_content, processed_blocks, content_hash, created_at, updated_at`

// PostgresDocumentRepository implements repositories.DocumentRepository.
// It is the only place that knows the snake_case column layout.
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// ListByOwner returns the owner's documents ordered by updated_at descending
func (r *PostgresDocumentRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1
		ORDER BY updated_at DESC, id
	`, documentColumns, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID)
	if err != nil {
		if IsPgInvalidTextError(err) {
			return []models.Document{}, nil
		}
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

// GetByID retrieves a document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1
	`, documentColumns, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, id))
	if err != nil {
		if IsPgNoRowsError(err) || IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return doc, nil
}

// GetLatest returns the owner's most recently updated document
func (r *PostgresDocumentRepository) GetLatest(ctx context.Context, ownerID string) (*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = $1
		ORDER BY updated_at DESC, id
		LIMIT 1
	`, documentColumns, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	doc, err := scanDocument(executor.QueryRow(ctx, query, ownerID))
	if err != nil {
		if IsPgNoRowsError(err) || IsPgInvalidTextError(err) {
			return nil, fmt.Errorf("latest document for %s: %w", ownerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get latest document: %w", err)
	}

	return doc, nil
}

// CountByOwner returns how many documents the owner has
func (r *PostgresDocumentRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, r.tables.Documents)

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Create inserts a document; the database assigns id and timestamps
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	blocks, err := encodeBlocks(doc.ProcessedBlocks)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, title, content, processed_content, processed_blocks, content_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, created_at, updated_at
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query,
		doc.OwnerID,
		doc.Title,
		doc.Content,
		doc.ProcessedContent,
		blocks,
		nullableHash(doc.ContentHash),
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// Update writes title, content, processed fields and hash, and bumps updated_at
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	blocks, err := encodeBlocks(doc.ProcessedBlocks)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $1,
		    content = $2,
		    processed_content = $3,
		    processed_blocks = $4,
		    content_hash = $5,
		    updated_at = now()
		WHERE id = $6
		RETURNING user_id, created_at, updated_at
	`, r.tables.Documents)

	executor := GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query,
		doc.Title,
		doc.Content,
		doc.ProcessedContent,
		blocks,
		nullableHash(doc.ContentHash),
		doc.ID,
	).Scan(&doc.OwnerID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if IsPgNoRowsError(err) || IsPgInvalidTextError(err) {
			return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("update document: %w", err)
	}

	if doc.ContentHash != nil && *doc.ContentHash == "" {
		doc.ContentHash = nil
	}

	return nil
}

// Delete removes a document and reports its owner
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id string) (string, bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING user_id`, r.tables.Documents)

	var ownerID string
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(&ownerID)
	if err != nil {
		if IsPgNoRowsError(err) || IsPgInvalidTextError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("delete document: %w", err)
	}

	return ownerID, true, nil
}

// scanDocument maps one row onto a Document. NULL processed columns stay nil.
func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	var blocks []byte

	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.Title,
		&doc.Content,
		&doc.ProcessedContent,
		&blocks,
		&doc.ContentHash,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if doc.ProcessedBlocks, err = decodeBlocks(blocks); err != nil {
		return nil, err
	}

	return &doc, nil
}

// encodeBlocks serializes blocks as a JSON array; nil blocks become NULL.
func encodeBlocks(blocks []models.ContentBlock) ([]byte, error) {
	if blocks == nil {
		return nil, nil
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("encode processed blocks: %w", err)
	}
	return data, nil
}

func decodeBlocks(data []byte) ([]models.ContentBlock, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var blocks []models.ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("decode processed blocks: %w", err)
	}
	return blocks, nil
}

// nullableHash stores an empty hash as NULL.
func nullableHash(hash *string) *string {
	if hash == nil || *hash == "" {
		return nil
	}
	return hash
}
