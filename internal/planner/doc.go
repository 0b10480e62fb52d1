// Package planner turns a series schedule into scheduled episodes.
//
// Launch is the one-shot activation: it validates the series configuration,
// books the first batch of publish slots as episode rows, schedules script
// generation ahead of each slot, and flips the series active. TopUp is the
// rolling counterpart the daemon cron runs daily: it books any unclaimed
// publish dates inside the horizon so an active series always has upcoming
// episodes, continuing the sequence numbering across runs.
//
// Credit estimation lives here too since launch reports it: a per-episode
// figure derived from story length, art style, and premium effects.
package planner
