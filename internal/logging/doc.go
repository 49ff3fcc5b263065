// Package logging assembles the structured slog loggers used across chute.
//
// It owns the console/JSON handlers, level plumbing, and attr helpers, and
// exposes context-aware constructors so run code automatically tags log
// lines with run and item identifiers. Prefer these constructors over
// hand-rolled slog setup so every component emits the same shape.
package logging
