// Package main hosts the siactl CLI entrypoint and command graph.
//
// The Cobra command tree launches and supervises siad in the foreground,
// talks to a running daemon over its HTTP API, converts between siacoins and
// hastings, and inspects the local run journal. Configuration resolution,
// client construction and output formatting live here; the daemon lifecycle
// itself belongs to internal/siad and internal/supervisor.
package main
