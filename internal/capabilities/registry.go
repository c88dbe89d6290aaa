// Package capabilities holds the catalog of models the transform service
// can use, with the token limits each one accepts.
package capabilities

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/models.yaml
var configFiles embed.FS

// Registry is an immutable model catalog
type Registry struct {
	providers []string
	models    map[string]modelList
}

// NewRegistry loads the embedded catalog
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/models.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from catalog YAML
func Parse(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model catalog: %w", err)
	}
	if len(file.Providers.names) == 0 {
		return nil, fmt.Errorf("model catalog lists no providers")
	}
	return &Registry{
		providers: file.Providers.names,
		models:    file.Providers.models,
	}, nil
}

// GetModelCapabilities returns capabilities for a specific model
func (r *Registry) GetModelCapabilities(provider, model string) (*ModelCapabilities, error) {
	models, ok := r.models[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	for i := range models {
		if models[i].ID == model {
			m := models[i]
			return &m, nil
		}
	}
	return nil, fmt.Errorf("unknown model %s for provider %s", model, provider)
}

// ListProviderModels returns a provider's models in catalog order
func (r *Registry) ListProviderModels(provider string) ([]ModelCapabilities, error) {
	models, ok := r.models[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	return append([]ModelCapabilities(nil), models...), nil
}

// GetAllProviders returns provider names in catalog order
func (r *Registry) GetAllProviders() []string {
	return append([]string(nil), r.providers...)
}
