// Package config loads and validates Fieldline Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// FIELDLINE_* environment variable overrides. Validation rejects a broken
// configuration at startup rather than failing later at runtime.
package config
