// Package config loads, validates, and defaults the TOML configuration for
// the inkwell daemon and CLI.
package config
