package models

import (
	"fmt"
	"strings"
	"time"

	"braindump/internal/domain"
)

// DefaultDocumentTitle is used for new documents and when a transform yields no title.
const DefaultDocumentTitle = "Untitled"

// BlockType is the closed set of processed block kinds.
type BlockType string

const (
	BlockMarkdown BlockType = "markdown"
	BlockMermaid  BlockType = "mermaid"
)

// Valid reports whether t is a known block type.
func (t BlockType) Valid() bool {
	switch t {
	case BlockMarkdown, BlockMermaid:
		return true
	}
	return false
}

// ContentBlock is one typed fragment of a processed document.
type ContentBlock struct {
	Type    BlockType `json:"type"`
	Content string    `json:"content"`
}

// Document is a user's brainstorming note together with its last AI pass.
// JSON uses the client's camelCase names; columns are snake_case (see the
// postgres repository).
type Document struct {
	ID               string         `json:"id" db:"id"`
	OwnerID          string         `json:"-" db:"user_id"`
	Title            string         `json:"title" db:"title"`
	Content          string         `json:"content" db:"content"`
	ProcessedContent *string        `json:"processedContent,omitempty" db:"processed_content"`
	ProcessedBlocks  []ContentBlock `json:"processedBlocks,omitempty" db:"processed_blocks"`
	ContentHash      *string        `json:"contentHash,omitempty" db:"content_hash"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time      `json:"updatedAt" db:"updated_at"`
}

// NewDocument returns an empty, untitled document for owner.
func NewDocument(ownerID string) *Document {
	return &Document{
		OwnerID: ownerID,
		Title:   DefaultDocumentTitle,
		Content: "",
	}
}

// Label is the name shown in document pickers.
func (d *Document) Label() string {
	if title := strings.TrimSpace(d.Title); title != "" {
		return title
	}
	if d.ID != "" {
		return d.ID
	}
	return DefaultDocumentTitle
}

// ApplyProcessed copies a transform result onto the document. hash must be
// the fingerprint of the content the result was produced from.
func (d *Document) ApplyProcessed(p *ProcessedDocument, hash string) {
	content := p.Content
	blocks := make([]ContentBlock, len(p.Blocks))
	copy(blocks, p.Blocks)

	d.Title = p.Title
	d.ProcessedContent = &content
	d.ProcessedBlocks = blocks
	d.ContentHash = &hash
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	if d.ProcessedContent != nil {
		v := *d.ProcessedContent
		c.ProcessedContent = &v
	}
	if d.ContentHash != nil {
		v := *d.ContentHash
		c.ContentHash = &v
	}
	if d.ProcessedBlocks != nil {
		c.ProcessedBlocks = make([]ContentBlock, len(d.ProcessedBlocks))
		copy(c.ProcessedBlocks, d.ProcessedBlocks)
	}
	return &c
}

// ProcessedDocument is the value returned by the transform service. It is
// never stored directly; ApplyProcessed copies it onto a Document.
type ProcessedDocument struct {
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Blocks  []ContentBlock `json:"blocks"`
}

// DegradedDocument is the transform result used when no model output is
// available: the raw text as a single markdown block.
func DegradedDocument(raw string) ProcessedDocument {
	return ProcessedDocument{
		Title:   DefaultDocumentTitle,
		Content: raw,
		Blocks:  []ContentBlock{{Type: BlockMarkdown, Content: raw}},
	}
}

// JoinBlocks renders blocks as one markdown string. Mermaid blocks are
// fenced; blocks are separated by a blank line.
func JoinBlocks(blocks []ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == BlockMermaid {
			parts = append(parts, "```mermaid\n"+b.Content+"\n```")
			continue
		}
		parts = append(parts, b.Content)
	}
	return strings.Join(parts, "\n\n")
}

// CreateDocumentRequest is the body of POST /api/documents.
type CreateDocumentRequest struct {
	Title   *string `json:"title,omitempty"`
	Content string  `json:"content"`
}

// UpdateDocumentRequest is the body of PUT /api/documents/{id}. Absent
// fields keep their stored value.
type UpdateDocumentRequest struct {
	Title            *string         `json:"title,omitempty"`
	Content          *string         `json:"content,omitempty"`
	ProcessedContent *string         `json:"processedContent,omitempty"`
	ProcessedBlocks  *[]ContentBlock `json:"processedBlocks,omitempty"`
	ContentHash      *string         `json:"contentHash,omitempty"`
}

// CheckProcessedFields rejects a partial processed result. processedContent,
// processedBlocks and contentHash describe one transform and are written
// together; contentHash may also be sent alone to seed the fingerprint.
func (r *UpdateDocumentRequest) CheckProcessedFields() error {
	hasContent := r.ProcessedContent != nil
	hasBlocks := r.ProcessedBlocks != nil
	if hasContent == hasBlocks && (!hasContent || r.ContentHash != nil) {
		return nil
	}
	return fmt.Errorf("%w: processedContent, processedBlocks and contentHash must be sent together", domain.ErrValidation)
}
