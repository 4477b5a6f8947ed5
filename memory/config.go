package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every recognized option for the memory system.
// Zero values are backfilled from DefaultConfig by normalize, so a partially
// populated Config (or YAML file) is always usable.
type Config struct {
	// EnableDecay turns on the background decay sweep and decayed-record
	// cleanup loop.
	EnableDecay bool `yaml:"enable_decay"`

	// DecayCheckInterval is how often the background loop runs.
	DecayCheckInterval time.Duration `yaml:"decay_check_interval"`

	// DecayThreshold is the decay factor below which records are removed
	// by cleanup.
	DecayThreshold float64 `yaml:"decay_threshold"`

	// DefaultTopK is the result count used when a recall does not specify one.
	DefaultTopK int `yaml:"default_top_k"`

	// MinSimilarityThreshold drops similarity matches below this value
	// before re-ranking.
	MinSimilarityThreshold float64 `yaml:"min_similarity_threshold"`

	// MaxBufferTurns triggers extraction once this many conversation turns
	// are buffered.
	MaxBufferTurns int `yaml:"max_buffer_turns"`

	// MaxBufferTokens triggers extraction once the buffered token estimate
	// reaches this value, whichever of the two thresholds comes first.
	MaxBufferTokens int `yaml:"max_buffer_tokens"`

	// ExtractOnSessionEnd flushes any remaining buffer through extraction
	// when a session ends.
	ExtractOnSessionEnd bool `yaml:"extract_on_session_end"`

	// AsyncExtraction dispatches extraction off the conversation path.
	AsyncExtraction bool `yaml:"async_extraction"`

	// ExtractionTimeout bounds a single asynchronous extraction run.
	ExtractionTimeout time.Duration `yaml:"extraction_timeout"`

	// EmbeddingDimension is the expected embedding vector size.
	EmbeddingDimension int `yaml:"embedding_dimension"`

	// ConflictStrategy names the strategy for reconciling contradictory
	// facts. Only "none" ships; the merge/dedup algorithm is a pluggable
	// concern selected here by name.
	ConflictStrategy string `yaml:"conflict_strategy"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() *Config {
	return &Config{
		EnableDecay:            true,
		DecayCheckInterval:     24 * time.Hour,
		DecayThreshold:         0.1,
		DefaultTopK:            5,
		MinSimilarityThreshold: 0.0,
		MaxBufferTurns:         10,
		MaxBufferTokens:        2000,
		ExtractOnSessionEnd:    true,
		AsyncExtraction:        true,
		ExtractionTimeout:      30 * time.Second,
		EmbeddingDimension:     384,
		ConflictStrategy:       "none",
	}
}

// LoadConfig reads a YAML config file, backfilling unset options with
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// normalize backfills zero values from DefaultConfig.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.DecayCheckInterval <= 0 {
		c.DecayCheckInterval = def.DecayCheckInterval
	}
	if c.DecayThreshold <= 0 {
		c.DecayThreshold = def.DecayThreshold
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = def.DefaultTopK
	}
	if c.MaxBufferTurns <= 0 {
		c.MaxBufferTurns = def.MaxBufferTurns
	}
	if c.MaxBufferTokens <= 0 {
		c.MaxBufferTokens = def.MaxBufferTokens
	}
	if c.ExtractionTimeout <= 0 {
		c.ExtractionTimeout = def.ExtractionTimeout
	}
	if c.EmbeddingDimension <= 0 {
		c.EmbeddingDimension = def.EmbeddingDimension
	}
	if c.ConflictStrategy == "" {
		c.ConflictStrategy = def.ConflictStrategy
	}
}
