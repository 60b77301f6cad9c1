// Package config loads, normalizes, and validates briefcast configuration.
//
// Configuration lives in a TOML file (~/.config/briefcast/config.toml by
// default, or ./briefcast.toml for project-local setups). Defaults are
// applied first, the file is decoded over them, paths are expanded, and the
// result is validated before use. Collaborator API keys fall back to
// environment variables so secrets can stay out of the file.
package config
