// Package produce implements the work functions behind each job kind: topic
// selection, script generation, audio synthesis, catalog update, and feed
// rebuild. Failures surface through the services error taxonomy so callers
// can classify them without string matching.
package produce
