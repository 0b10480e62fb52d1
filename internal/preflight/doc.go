// Package preflight provides readiness checks for the external services and
// filesystem paths the pipeline depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs failures before the
//     workers begin claiming jobs, so a missing key or unwritable directory
//     is visible immediately instead of as a parked job an hour later.
//   - The CLI "showrunner doctor" command renders the same results plus the
//     external binary checks for an operator-facing health report.
//
// A failed check never blocks startup on its own; some installs run
// intentionally degraded (no notifications, no platform credentials yet).
package preflight
