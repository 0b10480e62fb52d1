// Package daemon coordinates showrunner's long-running services: the
// workflow manager that drains the job queue, the scheduler that tops up
// series horizons, and the optional HTTP status surface. A file lock
// enforces one daemon per data directory; the IPC server and CLI drive
// everything else through the methods exposed here.
package daemon
