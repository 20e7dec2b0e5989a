// Package config provides runtime configuration for readbreak.
//
// Pipelines are declared in their own YAML files (see package spec). This
// package covers everything around them: engine behaviour, output layout,
// the audit store and telemetry.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("readbreak.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("readbreak.yaml")
//
// An empty path yields the defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention READBREAK_SECTION_FIELD:
//
//   - READBREAK_ENGINE_WORKERS overrides engine.workers
//   - READBREAK_AUDIT_SQLITE_PATH overrides audit.sqlite.path
//   - READBREAK_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// Command-line flags are applied by the caller after loading.
//
// # Singleton Pattern
//
//	if err := config.Initialize(path); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// For testing, prefer passing explicit Config values.
package config
