// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Enumerated event types cover the pipeline milestones (episode
// ready, episode failed, post published, post failed, schedule top-up) so
// stage handlers and the workflow manager can emit consistent messages
// without duplicating HTTP glue. Per-event configuration flags and a dedup
// window keep retry storms from flooding the topic.
//
// Extend this package if you need alternative transports; all pipeline code
// depends only on the simple Service interface.
package notifications
