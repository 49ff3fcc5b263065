// Package config loads, validates, and normalizes chute's TOML
// configuration.
//
// Defaults live in defaults.go; Load layers a config file over them,
// expands tilde paths, and validates the result. The embedded sample file
// backs `chute config init`.
package config
