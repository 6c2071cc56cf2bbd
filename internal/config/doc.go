// Package config provides centralized configuration for the MSA loan
// aggregation service.
//
// # Configuration Sources
//
// Configuration is layered in the following order of precedence:
//
//  1. Environment variables (highest priority)
//  2. A YAML configuration file
//  3. Default values (lowest priority)
//
// # Environment Variables
//
// Variables follow the pattern MSA_<SECTION>_<FIELD>:
//
//	MSA_SERVER_PORT=6789
//	MSA_LOGGING_LEVEL=debug
//	MSA_SOURCES_YEAR=2019
//	MSA_SOURCES_INCOME_THRESHOLD=50000
//	MSA_STORE_POSTGRES_URL=postgres://...
//
// MSA_CONFIG_FILE points at an explicit YAML file; otherwise config.yaml and
// configs/config.yaml are probed.
//
// # Path Management
//
// ResolvePaths turns the configured layout into absolute directories for the
// input cache (raw datasets), the output cache (derived artifacts), the
// public directory served over HTTP, and the log directory.
//
// # Validation
//
// Struct constraints are declared with validator tags and checked by
// Config.Validate after every source has been applied.
package config
