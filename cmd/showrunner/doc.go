// Command showrunner is the control binary for the episode production
// daemon. The same executable serves both roles: the hidden daemon
// subcommand runs the workflow loop in the foreground, while the rest of
// the command tree talks to a running daemon over its unix socket and
// falls back to direct job-store access for inspection commands when the
// daemon is down.
package main
