package models

import (
	"errors"
	"testing"

	"braindump/internal/domain"
)

func TestJoinBlocks(t *testing.T) {
	tests := []struct {
		name   string
		blocks []ContentBlock
		want   string
	}{
		{
			name: "markdown then mermaid",
			blocks: []ContentBlock{
				{Type: BlockMarkdown, Content: "X"},
				{Type: BlockMermaid, Content: "graph TD;A-->B"},
			},
			want: "X\n\n```mermaid\ngraph TD;A-->B\n```",
		},
		{
			name:   "single markdown",
			blocks: []ContentBlock{{Type: BlockMarkdown, Content: "# Title\n\nBody"}},
			want:   "# Title\n\nBody",
		},
		{
			name:   "no blocks",
			blocks: nil,
			want:   "",
		},
		{
			name: "order preserved",
			blocks: []ContentBlock{
				{Type: BlockMermaid, Content: "a"},
				{Type: BlockMarkdown, Content: "b"},
				{Type: BlockMarkdown, Content: "c"},
			},
			want: "```mermaid\na\n```\n\nb\n\nc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinBlocks(tt.blocks); got != tt.want {
				t.Errorf("JoinBlocks() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinBlocksIdempotent(t *testing.T) {
	blocks := []ContentBlock{
		{Type: BlockMarkdown, Content: "X"},
		{Type: BlockMermaid, Content: "graph TD;A-->B"},
	}
	first := JoinBlocks(blocks)
	second := JoinBlocks(blocks)
	if first != second {
		t.Fatalf("join is not stable: %q vs %q", first, second)
	}
}

func TestDegradedDocument(t *testing.T) {
	raw := "just some raw notes"
	got := DegradedDocument(raw)

	if got.Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", got.Title)
	}
	if got.Content != raw {
		t.Errorf("Content = %q, want %q", got.Content, raw)
	}
	if len(got.Blocks) != 1 || got.Blocks[0].Type != BlockMarkdown || got.Blocks[0].Content != raw {
		t.Errorf("Blocks = %+v, want one markdown block with raw text", got.Blocks)
	}
}

func TestDocumentLabel(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{name: "title", doc: Document{ID: "1", Title: " Plan "}, want: "Plan"},
		{name: "blank title falls back to id", doc: Document{ID: "abc", Title: "  "}, want: "abc"},
		{name: "nothing", doc: Document{}, want: "Untitled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyProcessedCopiesBlocks(t *testing.T) {
	p := &ProcessedDocument{
		Title:   "Ideas",
		Content: "X",
		Blocks:  []ContentBlock{{Type: BlockMarkdown, Content: "X"}},
	}
	doc := &Document{ID: "1", Content: "raw"}
	doc.ApplyProcessed(p, "hash")

	p.Blocks[0].Content = "mutated"

	if doc.ProcessedBlocks[0].Content != "X" {
		t.Error("ApplyProcessed must not alias the result's blocks")
	}
	if doc.Content != "raw" {
		t.Error("ApplyProcessed must not touch raw content")
	}
	if doc.ContentHash == nil || *doc.ContentHash != "hash" {
		t.Error("ContentHash not set")
	}
}

func TestBlockTypeValid(t *testing.T) {
	if !BlockMarkdown.Valid() || !BlockMermaid.Valid() {
		t.Error("known block types must be valid")
	}
	if BlockType("html").Valid() {
		t.Error("unknown block type must be invalid")
	}
}

func TestUpdateDocumentRequestCheckProcessedFields(t *testing.T) {
	content := "## Notes"
	blocks := []ContentBlock{{Type: BlockMarkdown, Content: content}}
	hash := "abc"
	title := "Notes"

	tests := []struct {
		name    string
		req     UpdateDocumentRequest
		wantErr bool
	}{
		{"nothing processed", UpdateDocumentRequest{Title: &title}, false},
		{"full triple", UpdateDocumentRequest{ProcessedContent: &content, ProcessedBlocks: &blocks, ContentHash: &hash}, false},
		{"hash seed alone", UpdateDocumentRequest{ContentHash: &hash}, false},
		{"content without blocks", UpdateDocumentRequest{ProcessedContent: &content, ContentHash: &hash}, true},
		{"blocks without content", UpdateDocumentRequest{ProcessedBlocks: &blocks, ContentHash: &hash}, true},
		{"result without hash", UpdateDocumentRequest{ProcessedContent: &content, ProcessedBlocks: &blocks}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.CheckProcessedFields()
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
