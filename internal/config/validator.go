package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validatePaths(&cfg.Paths)
	v.validateDiagnostics(&cfg.Diagnostics)
	v.validateSnapshot(&cfg.Snapshot)
	v.validateSupervise(&cfg.Supervise)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error, fatal")
	}

	validFormats := map[string]bool{
		"auto": true, "pretty": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, pretty, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validatePaths(cfg *PathsConfig) {
	if cfg.Logs != "" && !isValidPath(cfg.Logs) {
		v.addError("paths.logs", cfg.Logs, "invalid directory path")
	}
}

func (v *Validator) validateDiagnostics(cfg *DiagnosticsConfig) {
	if cfg.Dir != "" && !isValidPath(cfg.Dir) {
		v.addError("diagnostics.dir", cfg.Dir, "invalid directory path")
	}
	if cfg.Index != "" && !isValidPath(cfg.Index) {
		v.addError("diagnostics.index", cfg.Index, "invalid file path")
	}
	if cfg.MaxFiles < 0 {
		v.addError("diagnostics.max_files", cfg.MaxFiles, "must not be negative")
	}
}

func (v *Validator) validateSnapshot(cfg *SnapshotConfig) {
	if cfg.Dir == "" {
		return
	}
	info, err := os.Stat(cfg.Dir)
	if err == nil && !info.IsDir() {
		v.addError("snapshot.dir", cfg.Dir, "must be a directory")
		return
	}
	if !isValidPath(cfg.Dir) {
		v.addError("snapshot.dir", cfg.Dir, "invalid directory path")
	}
}

func (v *Validator) validateSupervise(cfg *SuperviseConfig) {
	if cfg.GracefulTimeout <= 0 {
		v.addError("supervise.graceful_timeout", cfg.GracefulTimeout, "must be positive")
	}
	if cfg.PollInterval <= 0 {
		v.addError("supervise.poll_interval", cfg.PollInterval, "must be positive")
	}
	if cfg.HardTimeout <= 0 {
		v.addError("supervise.hard_timeout", cfg.HardTimeout, "must be positive")
	}
	if cfg.PollInterval > cfg.GracefulTimeout && cfg.GracefulTimeout > 0 {
		v.addError("supervise.poll_interval", cfg.PollInterval, "must not exceed graceful_timeout")
	}
	if cfg.DefaultRetryBudget < 0 {
		v.addError("supervise.default_retry_budget", cfg.DefaultRetryBudget, "must not be negative")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Addr == "" {
		v.addError("server.addr", cfg.Addr, "address required")
		return
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		v.addError("server.addr", cfg.Addr, "must be host:port")
	}
}

// isValidPath reports whether the path's parent directory exists or could
// be created.
func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
