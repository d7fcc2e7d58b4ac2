// Package config loads, normalizes, and validates the TOML configuration
// consumed by every citelink subsystem.
package config
