// Package config loads, normalizes, and validates cardforge configuration
// from TOML. Path fields are tilde-expanded and made absolute, API keys fall
// back to environment variables, and a sample config can be materialized for
// first-time setup.
package config
