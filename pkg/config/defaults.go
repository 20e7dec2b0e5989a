package config

import "time"

// Default values for configuration fields.
const (
	DefaultEngineWorkers       = 1
	DefaultEngineWhitelistMiss = "fail"
	DefaultEngineMaxSpecSize   = 1 << 20

	DefaultIOOutDir      = "."
	DefaultIOPrefix      = "clipped"
	DefaultIOCompression = "gzip"
	DefaultIOLevel       = 3

	DefaultAuditBackend       = "sqlite"
	DefaultAuditSQLitePath    = "data/audit.db"
	DefaultAuditSQLiteDriver  = "sqlite"
	DefaultAuditMaxOpenConns  = 4
	DefaultAuditMaxIdleConns  = 2
	DefaultAuditBusyTimeout   = 5 * time.Second
	DefaultAuditAsyncBuffer   = 1000
	DefaultAuditWriteTimeout  = 5 * time.Second
	DefaultAuditRetentionDays = 90
	DefaultAuditPruneSchedule = "0 3 * * *"

	DefaultSourcesGitCacheDir = ".readbreak/sources"
	DefaultSourcesGitBranch   = "main"
	DefaultSourcesGitDepth    = 1
	DefaultSourcesGitTimeout  = 60 * time.Second
	DefaultSourcesGitAuthType = "none"

	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "text"
	DefaultMetricsNamespace     = "readbreak"
	DefaultMetricsSubsystem     = "pipeline"
	DefaultMetricsPath          = "/metrics"
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 0.01
	DefaultTracingServiceName   = "readbreak"
	DefaultTracingExportTimeout = 10 * time.Second
)

// DefaultStepDurationBuckets covers single-step latencies from 1µs to 10ms.
var DefaultStepDurationBuckets = []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.01}

// Defaults returns a Config holding every default, including the boolean
// fields that default to true. YAML is decoded on top of it so a file can
// switch those off.
func Defaults() *Config {
	cfg := &Config{
		IO: IOConfig{
			TrimTail:         true,
			ReportFailedOnly: true,
		},
		Audit: AuditConfig{
			SQLite: SQLiteConfig{WALMode: true},
			Recorder: RecorderConfig{
				FailedOnly:  true,
				IncludeVars: true,
			},
			Retention: RetentionConfig{
				Days:          DefaultAuditRetentionDays,
				PruneSchedule: DefaultAuditPruneSchedule,
			},
		},
		Sources: SourcesConfig{
			Git: GitSourceConfig{Depth: DefaultSourcesGitDepth},
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Insecure:    true,
				SampleRatio: DefaultTracingSampleRatio,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for fields that have zero values.
// It is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = DefaultEngineWorkers
	}
	if cfg.Engine.WhitelistMiss == "" {
		cfg.Engine.WhitelistMiss = DefaultEngineWhitelistMiss
	}
	if cfg.Engine.MaxSpecSize == 0 {
		cfg.Engine.MaxSpecSize = DefaultEngineMaxSpecSize
	}

	if cfg.IO.OutDir == "" {
		cfg.IO.OutDir = DefaultIOOutDir
	}
	if cfg.IO.Prefix == "" {
		cfg.IO.Prefix = DefaultIOPrefix
	}
	if cfg.IO.Compression == "" {
		cfg.IO.Compression = DefaultIOCompression
	}
	if cfg.IO.Level == 0 {
		cfg.IO.Level = DefaultIOLevel
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.SQLite.Driver == "" {
		cfg.Audit.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = DefaultAuditMaxOpenConns
	}
	if cfg.Audit.SQLite.MaxIdleConns == 0 {
		cfg.Audit.SQLite.MaxIdleConns = DefaultAuditMaxIdleConns
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultAuditBusyTimeout
	}
	if cfg.Audit.Recorder.AsyncBuffer == 0 {
		cfg.Audit.Recorder.AsyncBuffer = DefaultAuditAsyncBuffer
	}
	if cfg.Audit.Recorder.WriteTimeout == 0 {
		cfg.Audit.Recorder.WriteTimeout = DefaultAuditWriteTimeout
	}

	if cfg.Sources.Git.CacheDir == "" {
		cfg.Sources.Git.CacheDir = DefaultSourcesGitCacheDir
	}
	if cfg.Sources.Git.Branch == "" {
		cfg.Sources.Git.Branch = DefaultSourcesGitBranch
	}
	if cfg.Sources.Git.Timeout == 0 {
		cfg.Sources.Git.Timeout = DefaultSourcesGitTimeout
	}
	if cfg.Sources.Git.Auth.Type == "" {
		cfg.Sources.Git.Auth.Type = DefaultSourcesGitAuthType
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if len(cfg.Telemetry.Metrics.StepDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.StepDurationBuckets = append([]float64(nil), DefaultStepDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingExportTimeout
	}
}
