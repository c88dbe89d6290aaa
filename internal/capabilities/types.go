package capabilities

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModelCapabilities describes one transform model
type ModelCapabilities struct {
	// Model identifier (set during YAML unmarshaling)
	ID       string `yaml:"-" json:"id"`
	Provider string `yaml:"-" json:"provider"`

	DisplayName   string `yaml:"display_name" json:"displayName"`
	Description   string `yaml:"description" json:"description,omitempty"`
	SupportsTools bool   `yaml:"supports_tools" json:"supportsTools"`

	ContextWindow int `yaml:"context_window" json:"contextWindow"`
	MaxOutput     int `yaml:"max_output" json:"maxOutput"`
}

// Budget fits the configured token limits to the model. The output limit is
// capped at MaxOutput and the input limit at what remains of the context
// window once output is reserved. Zero or negative requests take the model
// maximum.
func (m *ModelCapabilities) Budget(maxInput, maxOutput int) (input, output int) {
	output = maxOutput
	if output <= 0 || (m.MaxOutput > 0 && output > m.MaxOutput) {
		output = m.MaxOutput
	}

	input = maxInput
	if m.ContextWindow > 0 {
		limit := m.ContextWindow - output
		if input <= 0 || input > limit {
			input = limit
		}
	}
	return input, output
}

// modelList keeps models in file order.
type modelList []ModelCapabilities

func (l *modelList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("models: expected a mapping, got line %d", node.Line)
	}
	// Content alternates key, value
	for i := 0; i+1 < len(node.Content); i += 2 {
		var m ModelCapabilities
		if err := node.Content[i+1].Decode(&m); err != nil {
			return fmt.Errorf("model %s: %w", node.Content[i].Value, err)
		}
		m.ID = node.Content[i].Value
		*l = append(*l, m)
	}
	return nil
}

// providerList keeps providers in file order.
type providerList struct {
	names  []string
	models map[string]modelList
}

func (p *providerList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("providers: expected a mapping, got line %d", node.Line)
	}
	p.models = make(map[string]modelList)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var models modelList
		if err := node.Content[i+1].Decode(&models); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
		for j := range models {
			models[j].Provider = name
		}
		p.names = append(p.names, name)
		p.models[name] = models
	}
	return nil
}

type catalogFile struct {
	Providers providerList `yaml:"providers"`
}
