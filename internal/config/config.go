// Package config loads the JSON-backed configuration shared by the trainer
// and tagger CLI, generalizing the nested-struct-with-json-tags style used
// throughout the pipeline configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lab/tagger/internal/logging"
)

// Config is the top-level configuration file shape.
type Config struct {
	Training *TrainingConfig `json:"training"`
	Decode   *DecodeConfig   `json:"decode"`
	Logging  *logging.Config `json:"logging"`
	Server   *ServerConfig   `json:"server"`
}

// TrainingConfig controls pkg/train.Sweep and pkg/train.Train.
type TrainingConfig struct {
	MinWeightsLen uint64  `json:"min_weights_len"`
	MaxWeightsLen uint64  `json:"max_weights_len"`
	MaxPatience   int     `json:"max_patience"`
	MaxEpochs     int     `json:"max_epochs"`
	FoldTolerance float64 `json:"fold_tolerance"`
	Seed          int64   `json:"seed"`
	UseDropout    bool    `json:"use_dropout"`
	DropoutRate   float64 `json:"dropout_rate"`
	MinStem       int     `json:"min_stem"`
	AffixLen      int     `json:"affix_len"`
	NSecondary    int     `json:"n_secondary"`
}

// DecodeConfig controls pkg/decode.Beam at tagging time.
type DecodeConfig struct {
	BeamWidth int `json:"beam_width"`
}

// ServerConfig controls internal/server's status endpoint.
type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// Default returns the configuration matching the upstream defaults: a
// single fixed weights_len (the reference implementation's
// MIN_WEIGHTS_LEN == MAX_WEIGHTS_LEN == 0x4000000), patience 5, no dropout,
// and beam width 1 (greedy).
func Default() *Config {
	return &Config{
		Training: &TrainingConfig{
			MinWeightsLen: 0x4000000,
			MaxWeightsLen: 0x4000000,
			MaxPatience:   5,
			MaxEpochs:     500,
			FoldTolerance: 0.0025,
			Seed:          1,
			UseDropout:    false,
			DropoutRate:   0,
			MinStem:       1,
			AffixLen:      4,
			NSecondary:    0,
		},
		Decode:  &DecodeConfig{BeamWidth: 1},
		Logging: &logging.Config{Level: "info", Output: "stdout"},
		Server:  &ServerConfig{Enabled: false, Addr: ":8080"},
	}
}

// Load reads a JSON configuration file and fills any section left nil with
// its default, mirroring the pipeline trainer's flag-overrides-file pattern
// (flags applied by the caller after Load returns).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	loaded := &Config{}
	if err := json.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if loaded.Training != nil {
		cfg.Training = loaded.Training
	}
	if loaded.Decode != nil {
		cfg.Decode = loaded.Decode
	}
	if loaded.Logging != nil {
		cfg.Logging = loaded.Logging
	}
	if loaded.Server != nil {
		cfg.Server = loaded.Server
	}
	return cfg, nil
}
