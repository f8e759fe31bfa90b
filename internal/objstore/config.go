package objstore

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/rune-vcs/rune/internal/rerr"
)

// Config is the repository-local settings file at .rune/config: TOML-shaped
// key/value pairs (spec.md §6, "process-wide settings"). Grounded in
// internal/ignore/config.go's Config+defaults() loading shape, applied to
// the TOML format spec.md names for this particular file rather than the
// YAML used for .runeignore.yml and the LFS config, which name YAML
// explicitly.
type Config struct {
	UserName  string `toml:"user_name"`
	UserEmail string `toml:"user_email"`
}

// ReadConfig loads .rune/config. A missing file yields a zero-value Config
// rather than an error, since a freshly initialized repository has none.
func (r *Repository) ReadConfig() (Config, error) {
	data, err := os.ReadFile(r.configPath())
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	return cfg, nil
}

// WriteConfig persists cfg to .rune/config.
func (r *Repository) WriteConfig(cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeDecodeError, err)
	}
	if err := os.WriteFile(r.configPath(), buf.Bytes(), 0o644); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return nil
}

func (r *Repository) configPath() string {
	return filepath.Join(r.RuneDir, ConfigFile)
}
