package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "READBREAK_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Values are decoded on top of Defaults, then validated. An empty path
// returns the validated defaults. Environment variables are not consulted;
// use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
		ApplyDefaults(cfg)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention READBREAK_SECTION_FIELD and take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Malformed numbers, durations and booleans are ignored.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	envInt("ENGINE_WORKERS", &cfg.Engine.Workers)
	envString("ENGINE_WHITELIST_MISS", &cfg.Engine.WhitelistMiss)
	envBool("ENGINE_TRACE", &cfg.Engine.Trace)
	envBool("ENGINE_STRICT", &cfg.Engine.Strict)

	// IO overrides
	envString("IO_OUT_DIR", &cfg.IO.OutDir)
	envString("IO_PREFIX", &cfg.IO.Prefix)
	envString("IO_COMPRESSION", &cfg.IO.Compression)
	envInt("IO_LEVEL", &cfg.IO.Level)
	envBool("IO_TRIM_TAIL", &cfg.IO.TrimTail)
	envString("IO_REPORT_PATH", &cfg.IO.ReportPath)

	// Audit overrides
	envBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("AUDIT_BACKEND", &cfg.Audit.Backend)
	envString("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envString("AUDIT_SQLITE_DRIVER", &cfg.Audit.SQLite.Driver)
	envDuration("AUDIT_SQLITE_BUSY_TIMEOUT", &cfg.Audit.SQLite.BusyTimeout)
	envBool("AUDIT_RECORDER_FAILED_ONLY", &cfg.Audit.Recorder.FailedOnly)
	envInt("AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.Days)
	if val := os.Getenv(EnvPrefix + "AUDIT_RETENTION_MAX_RUNS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Audit.Retention.MaxRuns = i
		}
	}
	envString("AUDIT_RETENTION_PRUNE_SCHEDULE", &cfg.Audit.Retention.PruneSchedule)

	// Sources overrides
	envString("SOURCES_GIT_CACHE_DIR", &cfg.Sources.Git.CacheDir)
	envString("SOURCES_GIT_BRANCH", &cfg.Sources.Git.Branch)
	envBool("SOURCES_GIT_OFFLINE", &cfg.Sources.Git.Offline)
	envString("SOURCES_GIT_AUTH_TYPE", &cfg.Sources.Git.Auth.Type)
	envString("SOURCES_GIT_AUTH_TOKEN", &cfg.Sources.Git.Auth.Token)
	envString("SOURCES_GIT_AUTH_SSH_KEY_PATH", &cfg.Sources.Git.Auth.SSHKeyPath)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_TEXTFILE_PATH", &cfg.Telemetry.Metrics.TextfilePath)
	envString("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
