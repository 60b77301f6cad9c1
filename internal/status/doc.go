// Package status builds read-only views over the job queue, series, and
// production cap for the API and CLI.
package status
