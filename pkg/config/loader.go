package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadConfig loads and parses a configuration file. A relative recipe dataset
// path is resolved against the directory of the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.Recipe.Dataset = resolvePath(path, cfg.Recipe.Dataset)
	return cfg, nil
}

// LoadRecipe loads and parses a recipe file
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file %s: %w", path, err)
	}
	recipe, err := ParseRecipeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipe file %s: %w", path, err)
	}
	recipe.Dataset = resolvePath(path, recipe.Dataset)
	return recipe, nil
}

func resolvePath(file, target string) string {
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(filepath.Dir(file), target)
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	if cfg.Sessions.MaxProblems < 0 {
		return fmt.Errorf("sessions.max_problems cannot be negative, got %d", cfg.Sessions.MaxProblems)
	}
	if cfg.Sessions.MaxEvaluators < 0 {
		return fmt.Errorf("sessions.max_evaluators cannot be negative, got %d", cfg.Sessions.MaxEvaluators)
	}

	if err := validateRecipe(&cfg.Recipe); err != nil {
		return fmt.Errorf("recipe validation failed: %w", err)
	}

	return nil
}

// validateRecipe checks the recipe fields that can be checked without I/O.
// Whether the dataset actually exists is only known when a factory is created.
func validateRecipe(r *Recipe) error {
	if r.Dataset == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}

	seen := make(map[string]bool)
	for _, m := range r.Metrics {
		if m == "" {
			return fmt.Errorf("metric name cannot be empty")
		}
		if seen[m] {
			return fmt.Errorf("duplicate metric: %s", m)
		}
		seen[m] = true
	}

	if r.MaxEpochs < 0 {
		return fmt.Errorf("max_epochs cannot be negative, got %d", r.MaxEpochs)
	}

	for dim, indices := range r.Restrict {
		if dim == "" {
			return fmt.Errorf("restrict: dimension name cannot be empty")
		}
		if len(indices) == 0 {
			return fmt.Errorf("restrict %s: at least one index must be listed", dim)
		}
		for _, idx := range indices {
			if idx < 0 {
				return fmt.Errorf("restrict %s: index cannot be negative, got %d", dim, idx)
			}
		}
	}

	return nil
}
