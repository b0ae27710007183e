// Package config implements the node's YAML configuration (spec.md §6):
// a single P2P block enumerating every wire/connection/pool option, plus
// the ambient Logger block every teacher binary carries. Grounded on the
// teacher's historical `pkg/config.Config`/`LoadFile` split (top-level
// struct, `gopkg.in/yaml.v3` strict decoding, `Validate` methods run after
// decode) — generalized to this module's single P2P-only configuration
// surface in place of the teacher's protocol/application split.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level node configuration.
type Config struct {
	Logger Logger `yaml:"Logger"`
	P2P    P2P    `yaml:"P2P"`
}

// Validate runs every sub-section's own Validate.
func (c Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.P2P.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LoadFile loads and validates config from path, strictly (unknown YAML
// keys are an error, matching the teacher's decoder.KnownFields(true)
// convention). If relativePath is non-empty, HostPoolFile is rebased
// against it when not already absolute.
func LoadFile(path string, relativePath ...string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: unable to read %q: %w", path, err)
	}

	cfg := Config{P2P: defaultP2P()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to unmarshal %q: %w", path, err)
	}

	if len(relativePath) == 1 && relativePath[0] != "" {
		updateRelativePaths(relativePath[0], &cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func updateRelativePaths(base string, cfg *Config) {
	if cfg.P2P.HostPoolFile != "" && !filepath.IsAbs(cfg.P2P.HostPoolFile) {
		cfg.P2P.HostPoolFile = filepath.Join(base, cfg.P2P.HostPoolFile)
	}
	if cfg.P2P.HostPoolStatsFile != "" && !filepath.IsAbs(cfg.P2P.HostPoolStatsFile) {
		cfg.P2P.HostPoolStatsFile = filepath.Join(base, cfg.P2P.HostPoolStatsFile)
	}
	if cfg.Logger.LogPath != "" && !filepath.IsAbs(cfg.Logger.LogPath) {
		cfg.Logger.LogPath = filepath.Join(base, cfg.Logger.LogPath)
	}
}
