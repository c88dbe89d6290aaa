package transform

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var promptFiles embed.FS

const notesPlaceholder = "{{notes}}"

// Prompts holds the instructions sent with every transform request.
type Prompts struct {
	System           string     `yaml:"system"`
	User             string     `yaml:"user"`
	Tool             ToolPrompt `yaml:"tool"`
	JSONInstructions string     `yaml:"json_instructions"`
}

// ToolPrompt names and describes the structured-output tool.
type ToolPrompt struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	TitleDescription   string `yaml:"title_description"`
	ContentDescription string `yaml:"content_description"`
	BlockDescription   string `yaml:"block_description"`
}

// LoadPrompts reads the embedded prompt file.
func LoadPrompts() (*Prompts, error) {
	data, err := promptFiles.ReadFile("prompts/transform.yaml")
	if err != nil {
		return nil, fmt.Errorf("read transform prompts: %w", err)
	}

	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal transform prompts: %w", err)
	}

	if p.System == "" || p.Tool.Name == "" || !strings.Contains(p.User, notesPlaceholder) {
		return nil, fmt.Errorf("transform prompts incomplete")
	}

	return &p, nil
}

// UserPrompt renders the user prompt for raw notes.
func (p *Prompts) UserPrompt(raw string) string {
	return strings.Replace(p.User, notesPlaceholder, raw, 1)
}
