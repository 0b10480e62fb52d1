// Package scriptgen generates episode scripts from series settings.
//
// The stage runs first in the production pipeline. It builds a content-type
// themed prompt from the series (custom topic fields, story length, tone,
// hook strength, call-to-action, narration language), asks the chat provider
// for either a scene array or monolithic text depending on the scene-mode
// flag, validates and caps the scene list, and persists an immutable Script
// row with prompt provenance. On success the episode moves to
// ready_for_review; the workflow manager records script_generation failures
// on the episode and drives retries.
package scriptgen
