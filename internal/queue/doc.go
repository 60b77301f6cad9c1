// Package queue persists job, series, and episode records in SQLite and is
// the single source of truth for state that must survive process restarts.
//
// Job mutation goes through UpdateJob, which applies a caller-supplied
// mutator inside a transaction and enforces the job state machine
// (queued -> running -> done|error, monotonic). Opening the store runs a
// reconciliation pass that reclassifies jobs left running by an unclean
// shutdown as errored, so a restart never leaves phantom running jobs.
//
// The productions table backs the rate guard's rolling-window accounting;
// TryReserveProduction performs the check-and-record in one transaction so
// concurrent enqueues cannot overshoot the cap.
//
// Treat this package as the authoritative home for queue semantics; when you
// add statuses or record fields, update schema.sql and bump schemaVersion.
package queue
