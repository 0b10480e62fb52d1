// Package scheduler keeps active series stocked with upcoming episodes.
// A cron-driven sweep tops up every active series to its scheduling
// horizon, so episodes booked at launch are replenished as publish dates
// pass. The sweep also runs on daemon start so a long downtime cannot
// leave schedules drained until the next nightly tick.
package scheduler
