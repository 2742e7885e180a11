// Package services defines shared utilities consumed by the siad controller,
// the supervisor and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, operation names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, so process, connection
//     and API failures stay distinguishable with errors.Is and map to stable
//     CLI exit codes.
package services
