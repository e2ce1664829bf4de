package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Paths       PathsConfig       `mapstructure:"paths" yaml:"paths"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot" yaml:"snapshot"`
	Supervise   SuperviseConfig   `mapstructure:"supervise" yaml:"supervise"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
}

// LogConfig configures logging behavior. File, when set, is an additional
// sink every log line is fanned out to besides the error stream.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// PathsConfig names the well-known directories handed to the core. Logs is
// the externally supplied log-directory entry; when empty, diagnostic
// artifacts fall back to ./logs, ./outputs/logs, then the working directory.
type PathsConfig struct {
	Logs string `mapstructure:"logs" yaml:"logs,omitempty"`
}

// DiagnosticsConfig configures diagnostic artifact handling.
type DiagnosticsConfig struct {
	// Dir overrides the resolved log directory for diagnostic artifacts
	// only. Empty means use paths.logs and its fallbacks.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`

	// Index is the artifact index database path. Empty disables indexing.
	Index string `mapstructure:"index" yaml:"index,omitempty"`

	// MaxFiles is how many artifacts `logs prune` keeps.
	MaxFiles int `mapstructure:"max_files" yaml:"max_files"`

	// IncludeEnv controls whether reports carry the redacted environment.
	IncludeEnv bool `mapstructure:"include_env" yaml:"include_env"`
}

// SnapshotConfig configures snapshot persistence.
type SnapshotConfig struct {
	// Dir is the fixed working directory snapshot paths resolve against.
	// Empty means the process working directory.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// SuperviseConfig configures supervised execution and the termination
// protocol.
type SuperviseConfig struct {
	GracefulTimeout    time.Duration `mapstructure:"graceful_timeout" yaml:"graceful_timeout"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	HardTimeout        time.Duration `mapstructure:"hard_timeout" yaml:"hard_timeout"`
	DefaultRetryBudget int           `mapstructure:"default_retry_budget" yaml:"default_retry_budget"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}
