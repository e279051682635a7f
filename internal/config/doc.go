// Package config loads and validates ingestor configuration from YAML
// with ${VAR} environment variable expansion.
package config
