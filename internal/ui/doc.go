// Package ui provides helpers for formatting human-readable console output.
//
// ConsoleReporter renders squash workflow progress for CLI users, and
// ConsoleCommandEventLogger translates git command lifecycle events into
// concise messages while detailed telemetry continues to flow through
// structured loggers.
package ui
