package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Render returns the effective configuration as YAML, for `config show`
// style tooling.
func Render(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	return data, nil
}

// WriteDefault writes the default configuration to path atomically. It
// refuses to clobber an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s: %w", path, os.ErrExist)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config file: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := atomicWriteFile(path, []byte(DefaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
