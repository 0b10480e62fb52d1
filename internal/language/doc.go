// Package language provides unified language tag normalization and naming.
//
// Narration language flows from series configuration into script prompts,
// voice selection, and CLI output; all BCP-47 handling is consolidated here
// to avoid duplication across those surfaces.
package language
