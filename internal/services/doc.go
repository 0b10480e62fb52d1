// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job, episode, stage, lane, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that carry the failing
//     step and operation, so the workflow manager can persist uniform
//     {step, message} error payloads and decide retryability.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
