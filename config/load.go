package config

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration from fs. Keys absent from the file keep
// their built-in defaults.
//
//	transforms:
//	  chebyshev: vandermonde
//	logging:
//	  level: debug
func Load(fs afero.Fs, path string) (Config, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	var file Config
	if err = yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg := Default()
	for f, k := range file.Transforms {
		cfg.Transforms[f] = k
	}
	if file.Logging.Name != "" {
		cfg.Logging.Name = file.Logging.Name
	}
	if file.Logging.Level != "" {
		cfg.Logging.Level = file.Logging.Level
	}
	cfg.Logging.JSON = file.Logging.JSON
	if err = cfg.Transforms.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to fs
func Save(fs afero.Fs, path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err = afero.WriteFile(fs, path, raw, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}
