// Package logging provides structured logging for Fieldline Core.
//
// It wraps log/slog with service-wide default attributes and config-driven
// level, format, and destination selection.
package logging
