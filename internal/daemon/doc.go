// Package daemon wires the long-running pieces together: worker pool, series
// orchestrator, autoqueue cron, and the JSON API. A file lock keeps a single
// instance per data directory.
package daemon
