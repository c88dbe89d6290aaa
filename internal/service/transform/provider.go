package transform

import (
	"context"
	"fmt"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"

	"braindump/internal/domain/models"
)

// responder is the part of llmprovider.Provider the generator calls.
type responder interface {
	GenerateResponse(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error)
}

// ProviderGenerator drives any meridian-llm-go provider. Providers there have
// no tool forcing, so the JSON shape is requested in the system prompt and
// parsed out of the text reply.
type ProviderGenerator struct {
	provider responder
	model    string
	system   string
	prompts  *Prompts
}

// NewProviderGenerator wraps a library provider.
func NewProviderGenerator(provider responder, model string, prompts *Prompts) (*ProviderGenerator, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if prompts == nil {
		return nil, fmt.Errorf("prompts are required")
	}
	return &ProviderGenerator{
		provider: provider,
		model:    model,
		system:   prompts.System + "\n\n" + prompts.JSONInstructions,
		prompts:  prompts,
	}, nil
}

// Model returns the model identifier used for requests.
func (g *ProviderGenerator) Model() string {
	return g.model
}

// Generate sends the notes and parses the JSON document out of the reply.
func (g *ProviderGenerator) Generate(ctx context.Context, raw string) (*models.ProcessedDocument, error) {
	user := g.prompts.UserPrompt(raw)
	system := g.system

	req := &llmprovider.GenerateRequest{
		Model: g.model,
		Messages: []llmprovider.Message{
			{
				Role: "user",
				Blocks: []*llmprovider.Block{
					{BlockType: "text", Sequence: 0, TextContent: &user},
				},
			},
		},
		Params: &llmprovider.RequestParams{System: &system},
	}

	resp, err := g.provider.GenerateResponse(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s generate failed: %w", g.model, err)
	}

	var sb strings.Builder
	for _, block := range resp.Blocks {
		if block == nil || block.BlockType != "text" || block.TextContent == nil {
			continue
		}
		sb.WriteString(*block.TextContent)
	}

	out, err := decodeOutput(sb.String())
	if err != nil {
		return nil, err
	}
	return normalize(out)
}
