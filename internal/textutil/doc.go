// Package textutil provides small text helpers shared across the pipeline
// and CLI.
//
// The primary use cases are:
//   - Rune-safe truncation for platform caption limits and prompt budgets
//   - Rendering snake_case identifiers as human-facing labels
//   - Whitespace collapsing for log-friendly one-liners
package textutil
