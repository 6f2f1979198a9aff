// Package config loads the orchestrator's YAML configuration. It is a
// simplified cousin of the teacher's multi-file loader: no $include
// graph, no JSON5, since MemoryMesh is an embedded library configured
// by a single small file, not a multi-service application.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sparkvibe-io/memorymesh/internal/merrors"
)

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string         `yaml:"provider"`
	Options  map[string]any `yaml:"options"`
}

// RelevanceConfig overrides the default relevance-scoring weights and
// constants.
type RelevanceConfig struct {
	SemanticWeight   float64 `yaml:"semantic_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`
	ImportanceWeight float64 `yaml:"importance_weight"`
	FrequencyWeight  float64 `yaml:"frequency_weight"`
	RecencyHorizon   int     `yaml:"recency_horizon_days"`
	FrequencyCap     int     `yaml:"frequency_cap"`
	SessionBoost     float64 `yaml:"session_boost"`
}

// Config is the orchestrator's full configuration surface.
type Config struct {
	ProjectPath          string          `yaml:"project_path"`
	GlobalPath           string          `yaml:"global_path"`
	Embeddings           EmbeddingConfig `yaml:"embeddings"`
	EncryptionPassphrase string          `yaml:"encryption_passphrase"`
	Relevance            RelevanceConfig `yaml:"relevance"`
	CompactInterval      int             `yaml:"compact_interval"`
}

// Default returns a Config with every documented default applied.
func Default() Config {
	return Config{
		Embeddings: EmbeddingConfig{Provider: "none"},
		Relevance: RelevanceConfig{
			SemanticWeight:   0.5,
			RecencyWeight:    0.2,
			ImportanceWeight: 0.2,
			FrequencyWeight:  0.1,
			RecencyHorizon:   30,
			FrequencyCap:     100,
			SessionBoost:     1.25,
		},
		CompactInterval: 50,
	}
}

// Load reads path, expands environment variables in the raw bytes
// (matching the teacher's os.ExpandEnv loader convention), decodes
// YAML onto the documented defaults, and rejects unknown fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, merrors.Wrap(merrors.IoError, "config.Load", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return nil, merrors.Wrap(merrors.InvalidArgument, "config.Load", fmt.Errorf("parse config: %w", err))
	}

	return &cfg, nil
}
