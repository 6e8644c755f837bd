// Package logging assembles structured slog loggers and formatting helpers used
// across foley.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code tags log lines with run
// IDs, stages, and effect categories. Warnings about dropped effects go through
// WarnWithContext so every one carries an event type, a hint, and its impact.
package logging
