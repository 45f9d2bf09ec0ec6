// Package config loads, normalizes, and validates the TOML configuration
// that drives the overdub daemon: directories, external service endpoints,
// pipeline timing, credit settings, and logging.
package config
