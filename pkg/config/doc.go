// Package config loads and validates the rules engine configuration.
//
// Configuration comes from a YAML file decoded over the defaults, followed
// by environment variable overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("rulesengine.yaml")
//
// Environment variables are named RULESENGINE_SECTION_FIELD, for example
// RULESENGINE_STORAGE_BACKEND, RULESENGINE_RULES_PATH or
// RULESENGINE_TELEMETRY_LOGGING_LEVEL. They take precedence over the file.
//
// Precedence, from lowest to highest:
//
//  1. Defaults (defaults.go)
//  2. YAML file
//  3. Environment overrides
//
// Validation runs after each stage that can change values and reports every
// invalid field at once through ValidationError.
//
// A process-wide instance is available through Initialize and GetConfig.
// Prefer passing *Config explicitly in library code and tests.
package config
