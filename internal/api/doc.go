// Package api defines the transport representations of showrunner's
// domain records. The daemon's HTTP surface and the unix-socket IPC both
// speak these types, so the CLI and any external client render from one
// shape regardless of which channel served the data.
package api
