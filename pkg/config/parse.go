package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseConfigYAML parses a Config from YAML bytes, fills defaults and validates it.
func ParseConfigYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ParseConfigYAMLString parses a Config from a YAML string and validates it.
func ParseConfigYAMLString(yamlText string) (*Config, error) {
	return ParseConfigYAML([]byte(yamlText))
}

// ParseRecipeYAML parses a standalone Recipe document.
func ParseRecipeYAML(data []byte) (*Recipe, error) {
	var recipe Recipe
	if err := yaml.Unmarshal(data, &recipe); err != nil {
		return nil, fmt.Errorf("failed to parse recipe yaml: %w", err)
	}
	applyRecipeDefaults(&recipe)

	if err := validateRecipe(&recipe); err != nil {
		return nil, fmt.Errorf("invalid recipe: %w", err)
	}

	return &recipe, nil
}

// MarshalRecipeYAML renders a recipe back to YAML.
func MarshalRecipeYAML(r *Recipe) ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipe: %w", err)
	}
	return out, nil
}
