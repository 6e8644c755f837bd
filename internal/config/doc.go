// Package config loads, normalizes, and validates foley configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as GEMINI_API_KEY and FOLEY_CACHE_DIR. Always obtain settings
// through this package so downstream code receives sanitized paths and clear
// validation errors.
package config
