// Package config loads, normalizes, and validates carbonscan configuration.
//
// Configuration lives in a TOML file (~/.config/carbonscan/config.toml by
// default, or carbonscan.toml in the working directory). All path fields are
// expanded before use; environment variables supply API keys when the file
// leaves them blank.
package config
