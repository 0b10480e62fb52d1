// Package llm provides an OpenAI chat completion client for script synthesis.
//
// This package is used by:
//   - Script generation stage: draft narration text and scene breakdowns
//
// # Configuration
//
// Requires api_key and model, and optionally base_url and timeout. The base
// URL defaults to the public OpenAI endpoint; pointing it elsewhere allows
// any chat-completions-compatible provider.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts with temperature and token caps.
// Client.CompleteJSON: JSON-only completion for structured payloads.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Payload Handling
//
// Models occasionally wrap JSON in code fences or prose despite instructions.
// DecodeModelJSON strips fences and extracts the first JSON object or array
// before giving up, so callers get a decoded value or a snippet-bearing error.
package llm
