// Package store persists all Showrunner state in a single SQLite database:
// series configuration, episodes, scripts, media assets, publish posts,
// connected platform accounts, and the durable job queue that drives the
// production pipeline.
//
// Entity writes that pipeline stages can race on (episodes, series) go
// through compare-and-swap on a revision column; queue jobs carry a
// per-attempt lease token so a stalled worker's late writes cannot clobber a
// reclaimed job. Schema setup is migration-driven: the embedded base schema
// plus migrations/*.sql are applied in one transaction at open and recorded
// in schema_migrations.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add statuses or job kinds, update schema.sql and the models here
// together.
package store
