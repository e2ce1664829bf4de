package config

// DefaultConfigYAML contains the default configuration YAML content.
// `lifeline init` writes it verbatim so a fresh project documents its own
// knobs.
const DefaultConfigYAML = `# Lifeline configuration
#
# Values not specified here use sensible defaults.

log:
  # debug | info | warn | error | fatal
  level: info
  # auto | pretty | text | json (auto picks pretty on a terminal)
  format: auto
  # Optional extra sink; every log line is also appended here.
  # file: lifeline.log

paths:
  # Directory for diagnostic artifacts. When empty, falls back to
  # ./logs, then ./outputs/logs, then the working directory.
  logs: logs

diagnostics:
  # Artifact index database. Empty disables indexing.
  index: .lifeline/artifacts.db
  # How many artifacts "lifeline logs prune" keeps.
  max_files: 50
  # Reports include the environment with sensitive values redacted.
  include_env: true

snapshot:
  # Fixed working directory snapshot paths resolve against.
  # dir: .lifeline/snapshots

supervise:
  graceful_timeout: 1s
  poll_interval: 10ms
  hard_timeout: 1s
  default_retry_budget: 0

server:
  addr: 127.0.0.1:8640
`
