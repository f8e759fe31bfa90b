package lfs

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config mirrors .rune/lfsconfig (spec.md §6): which paths are tracked by
// LFS (by glob pattern or size threshold) and the chunk size to use.
type Config struct {
	Patterns           []string `yaml:"patterns"`
	SizeThresholdBytes int64    `yaml:"size_threshold_bytes"`
	ChunkSizeBytes     int64    `yaml:"chunk_size_bytes"`
}

// LoadConfig reads .rune/lfsconfig from runeDir. A missing file yields a
// Config with DefaultChunkSize and no patterns/threshold (LFS effectively
// off until configured), not an error.
func LoadConfig(runeDir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(runeDir, "lfsconfig"))
	if os.IsNotExist(err) {
		return &Config{ChunkSizeBytes: DefaultChunkSize}, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.ChunkSizeBytes == 0 {
		cfg.ChunkSizeBytes = DefaultChunkSize
	}
	return &cfg, nil
}

// SaveConfig persists cfg to .rune/lfsconfig, overwriting any previous
// content. Used by the "track" CLI surface to add a pattern without hand
// editing the file.
func SaveConfig(runeDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runeDir, "lfsconfig"), data, 0o644)
}

// ShouldTrack reports whether path (its base name) matches a configured LFS
// pattern, or size meets or exceeds the configured size threshold —
// spec.md §4.7's "matches an LFS pattern... or size-threshold auto-detection".
func (c *Config) ShouldTrack(path string, size int64) bool {
	if c == nil {
		return false
	}
	if c.SizeThresholdBytes > 0 && size >= c.SizeThresholdBytes {
		return true
	}
	base := filepath.Base(path)
	for _, pat := range c.Patterns {
		if matched, _ := filepath.Match(pat, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pat, path); matched {
			return true
		}
	}
	return false
}
