// Package config loads, normalizes, and validates scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays SCRIBE_* variables from the
// environment or a .env file. Credentials such as OPENAI_API_KEY and HF_TOKEN
// fill blank settings only.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical engine and backend names, and clear validation
// errors.
package config
