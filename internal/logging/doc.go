// Package logging constructs slog loggers for briefcast components.
//
// Two output formats are supported: a colorized single-line console format
// for interactive use and JSON for machine consumption. Attr helpers and
// standardized field keys keep log output consistent across packages.
package logging
