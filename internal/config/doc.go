// Package config loads, normalizes, and validates siactl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SIACTL_API_PASSWORD
// environment fallback. The Config type centralizes every knob the supervisor
// and CLI need: how siad is launched, how the API is reached, and where the
// journal and logs live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
