// Package config loads and validates the engine configuration.
//
// Configuration is read from config.yaml (in ./config or the working
// directory) with environment variable overrides, and every field is
// validated before the engine starts so a bad deploy fails fast instead of
// misbehaving at 3am.
package config
