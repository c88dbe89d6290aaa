package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"braindump/internal/domain/models"
)

// AnthropicGenerator asks Claude for the document through a forced tool call,
// so the reply arrives as schema-shaped JSON instead of free text.
type AnthropicGenerator struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	prompts   *Prompts
}

// NewAnthropicGenerator creates a generator for the given model.
// Extra options are appended after the API key (base URL, retries).
func NewAnthropicGenerator(apiKey, model string, maxTokens int, prompts *Prompts, opts ...option.RequestOption) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &AnthropicGenerator{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
		prompts:   prompts,
	}, nil
}

// Model returns the model identifier used for requests.
func (g *AnthropicGenerator) Model() string {
	return g.model
}

// Generate sends the notes and returns the normalized document.
func (g *AnthropicGenerator) Generate(ctx context.Context, raw string) (*models.ProcessedDocument, error) {
	tool := g.documentTool()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: g.prompts.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(g.prompts.UserPrompt(raw))),
		},
		Tools: []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: tool.Name},
		},
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}

	for _, content := range message.Content {
		if content.Type != "tool_use" || content.Name != tool.Name {
			continue
		}
		var out modelOutput
		if err := json.Unmarshal(content.Input, &out); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		return normalize(&out)
	}

	// Some replies put the JSON in a text block despite the forced tool.
	for _, content := range message.Content {
		if content.Type == "text" {
			out, err := decodeOutput(content.Text)
			if err != nil {
				return nil, err
			}
			return normalize(out)
		}
	}

	return nil, fmt.Errorf("%w: no tool call in reply (stop_reason=%s)", ErrInvalidOutput, message.StopReason)
}

func (g *AnthropicGenerator) documentTool() anthropic.ToolParam {
	tp := g.prompts.Tool
	return anthropic.ToolParam{
		Name:        tp.Name,
		Description: anthropic.String(tp.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": tp.TitleDescription,
				},
				"content": map[string]any{
					"type":        "array",
					"description": tp.ContentDescription,
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"type": map[string]any{
								"type": "string",
								"enum": []string{string(models.BlockMarkdown), string(models.BlockMermaid)},
							},
							"content": map[string]any{
								"type":        "string",
								"description": tp.BlockDescription,
							},
						},
						"required": []string{"type", "content"},
					},
				},
			},
			Required: []string{"title", "content"},
		},
	}
}
