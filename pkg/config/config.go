package config

import "time"

// Config is the root configuration structure for readbreak.
type Config struct {
	// Engine controls pipeline compilation and execution.
	Engine EngineConfig `yaml:"engine"`

	// IO controls output files and verdict reports.
	IO IOConfig `yaml:"io"`

	// Audit controls the audit store for runs and failed reads.
	Audit AuditConfig `yaml:"audit"`

	// Sources controls pipelines fetched from Git repositories.
	Sources SourcesConfig `yaml:"sources"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains pipeline engine configuration.
type EngineConfig struct {
	// Workers is the number of concurrent pipeline workers.
	// Default: 1
	Workers int `yaml:"workers"`

	// WhitelistMiss is the policy for extract steps without
	// on_whitelist_miss. Options: "fail", "record"
	// Default: "fail"
	WhitelistMiss string `yaml:"whitelist_miss"`

	// Trace records every step state transition per read.
	// Default: false
	Trace bool `yaml:"trace"`

	// Strict rejects unknown fields in pipeline steps.
	// Default: false
	Strict bool `yaml:"strict"`

	// MaxSpecSize is the largest accepted pipeline file in bytes.
	// Default: 1 MiB
	MaxSpecSize int64 `yaml:"max_spec_size"`
}

// IOConfig contains output configuration.
type IOConfig struct {
	// OutDir receives the clipped FASTQ files.
	// Default: "."
	OutDir string `yaml:"out_dir"`

	// Prefix names the output files <prefix>_R1.fastq.gz and
	// <prefix>_R2.fastq.gz.
	// Default: "clipped"
	Prefix string `yaml:"prefix"`

	// Compression is the output codec. Options: "gzip", "zstd", "none"
	// Default: "gzip"
	Compression string `yaml:"compression"`

	// Level is the compression level.
	// Default: 3
	Level int `yaml:"level"`

	// TrimTail cuts read identifiers at the first whitespace.
	// Default: true
	TrimTail bool `yaml:"trim_tail"`

	// ReportPath, when set, receives a JSON Lines verdict report.
	ReportPath string `yaml:"report_path"`

	// ReportFailedOnly limits the report to failing pairs.
	// Default: true
	ReportFailedOnly bool `yaml:"report_failed_only"`
}

// AuditConfig contains audit store configuration.
type AuditConfig struct {
	// Enabled records every run and its failed reads.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend. Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains verdict recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention configuration for audit prune.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 2
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains verdict recorder configuration.
type RecorderConfig struct {
	// FailedOnly records only failed pairs.
	// Default: true
	FailedOnly bool `yaml:"failed_only"`

	// IncludeVars stores the pair variables with each verdict.
	// Default: true
	IncludeVars bool `yaml:"include_vars"`

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains retention configuration.
type RetentionConfig struct {
	// Days is the number of days to keep runs. 0 keeps runs forever.
	// Default: 90
	Days int `yaml:"days"`

	// MaxRuns is the maximum number of runs to keep. 0 means unlimited.
	// Default: 0
	MaxRuns int64 `yaml:"max_runs"`

	// PruneSchedule is a cron expression used by audit prune --schedule.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// SourcesConfig contains pipeline source configuration.
type SourcesConfig struct {
	// Git contains configuration for git:: pipeline references.
	Git GitSourceConfig `yaml:"git"`
}

// GitSourceConfig contains Git checkout configuration.
type GitSourceConfig struct {
	// CacheDir holds one checkout per repository and branch.
	// Default: ".readbreak/sources"
	CacheDir string `yaml:"cache_dir"`

	// Branch is used when a reference has no ?ref= part.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Depth is the clone depth. 0 clones the full history.
	// Default: 1
	Depth int `yaml:"depth"`

	// Timeout bounds a single clone or pull.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Offline uses an existing checkout without pulling.
	// Default: false
	Offline bool `yaml:"offline"`

	// Auth contains Git authentication configuration.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig contains Git authentication configuration.
type GitAuthConfig struct {
	// Type is the authentication method. Options: "none", "token", "ssh"
	// Default: "none"
	Type string `yaml:"type"`

	// Token is an access token for HTTPS repositories. Prefer the
	// READBREAK_SOURCES_GIT_AUTH_TOKEN environment variable.
	Token string `yaml:"token"`

	// SSHKeyPath is the private key used for SSH repositories.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase unlocks an encrypted SSH key.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "readbreak"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "pipeline"
	Subsystem string `yaml:"subsystem"`

	// TextfilePath, when set, receives the metrics in Prometheus text
	// format at the end of a run (node_exporter textfile collector).
	TextfilePath string `yaml:"textfile_path"`

	// ListenAddress, when set, serves the metrics over HTTP during a run.
	// Example: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// StepDurationBuckets defines histogram buckets for step durations
	// (seconds).
	// Default: [0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.01]
	StepDurationBuckets []float64 `yaml:"step_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio", "parent_based"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of read pairs to trace (0.0 to 1.0).
	// Default: 0.01
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "readbreak"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
