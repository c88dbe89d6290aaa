package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"braindump/internal/config"
	"braindump/internal/domain/models"
)

// ErrInvalidOutput marks model output that does not fit the document schema.
var ErrInvalidOutput = errors.New("invalid model output")

// modelOutput is the schema the model is asked to fill.
type modelOutput struct {
	Title   string                `json:"title"`
	Content []models.ContentBlock `json:"content"`
}

// decodeOutput parses a JSON object, tolerating surrounding prose or a
// markdown code fence around it.
func decodeOutput(text string) (*modelOutput, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrInvalidOutput)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return &out, nil
}

// normalize validates model output and builds the processed document.
// Whitespace-only blocks are dropped; Content is always rebuilt from blocks.
func normalize(out *modelOutput) (*models.ProcessedDocument, error) {
	blocks := make([]models.ContentBlock, 0, len(out.Content))
	for _, b := range out.Content {
		if strings.TrimSpace(b.Content) == "" {
			continue
		}
		if b.Type == models.BlockMermaid {
			b.Content = stripMermaidFence(b.Content)
		}
		blocks = append(blocks, b)
	}

	title := strings.TrimSpace(out.Title)
	if title == "" {
		title = models.DefaultDocumentTitle
	}
	if runes := []rune(title); len(runes) > config.MaxDocumentTitleLength {
		title = string(runes[:config.MaxDocumentTitleLength])
	}

	err := validation.Validate(blocks,
		validation.Required,
		validation.Length(1, config.MaxProcessedBlocks),
		validation.Each(validation.By(func(value interface{}) error {
			b := value.(models.ContentBlock)
			if !b.Type.Valid() {
				return fmt.Errorf("unknown block type %q", b.Type)
			}
			return nil
		})),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	return &models.ProcessedDocument{
		Title:   title,
		Content: models.JoinBlocks(blocks),
		Blocks:  blocks,
	}, nil
}

// stripMermaidFence removes a ```mermaid fence a model sometimes adds even
// though JoinBlocks adds its own.
func stripMermaidFence(src string) string {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return src
	}
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "mermaid")
	return strings.Trim(s, "\n")
}
