package config

// Config represents the daemon configuration
type Config struct {
	LogLevel  string   `yaml:"log_level"`
	LogFormat string   `yaml:"log_format,omitempty"` // text or json
	Server    Server   `yaml:"server"`
	Recipe    Recipe   `yaml:"recipe"`
	Sessions  Sessions `yaml:"sessions,omitempty"`
}

// Server holds listen addresses. An empty address disables that listener.
type Server struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Recipe describes which dataset to replay and how to read it
type Recipe struct {
	Dataset    string           `yaml:"dataset"`
	Metrics    []string         `yaml:"metrics,omitempty"`     // objective metrics, in reply order
	CostMetric string           `yaml:"cost_metric,omitempty"` // e.g. runtime
	MaxEpochs  int              `yaml:"max_epochs,omitempty"`  // 0 = every stored epoch
	Restrict   map[string][]int `yaml:"restrict,omitempty"`    // dimension -> allowed dataset indices
}

// Sessions bounds the service-side session registry
type Sessions struct {
	MaxProblems   int `yaml:"max_problems,omitempty"`
	MaxEvaluators int `yaml:"max_evaluators,omitempty"`
}

// DefaultMetric is the objective used when a recipe names none.
const DefaultMetric = "valid_mse"

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Server.HTTPAddr == "" && cfg.Server.GRPCAddr == "" {
		cfg.Server.HTTPAddr = ":8080"
		cfg.Server.GRPCAddr = ":50051"
	}
	if cfg.Sessions.MaxProblems == 0 {
		cfg.Sessions.MaxProblems = 10000
	}
	if cfg.Sessions.MaxEvaluators == 0 {
		cfg.Sessions.MaxEvaluators = 10000
	}
	applyRecipeDefaults(&cfg.Recipe)
}

func applyRecipeDefaults(r *Recipe) {
	if len(r.Metrics) == 0 {
		r.Metrics = []string{DefaultMetric}
	}
}
