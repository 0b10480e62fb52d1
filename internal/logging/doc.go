// Package logging assembles the structured slog loggers used across
// showrunner components.
//
// It centralizes level and output plumbing, exposes typed attribute
// constructors and canonical field names, and provides context-aware helpers
// so stage code automatically tags log lines with job, episode, stage, lane,
// and correlation identifiers. A no-op logger is available for tests and
// wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
