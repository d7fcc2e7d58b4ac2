// Package logging constructs the application's slog loggers and provides
// typed attribute helpers plus standardized field names shared across
// components.
package logging
