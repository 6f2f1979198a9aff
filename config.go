package memorymesh

import "github.com/sparkvibe-io/memorymesh/internal/config"

// Config is the orchestrator's full configuration surface, decodable
// from YAML via LoadConfig or constructed directly in Go.
type Config = config.Config

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig = config.EmbeddingConfig

// RelevanceConfig overrides the default relevance-scoring weights and
// constants.
type RelevanceConfig = config.RelevanceConfig

// DefaultConfig returns a Config with every documented default
// applied: embedding provider "none", the documented relevance
// weights, session boost 1.25, compact interval 50.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads and decodes a YAML configuration file, applying
// documented defaults to any field the file omits.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
