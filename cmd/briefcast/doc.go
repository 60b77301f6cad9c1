// Command briefcast runs the podcast production daemon and provides the CLI
// for queueing episodes, managing series, and inspecting the catalog.
package main
