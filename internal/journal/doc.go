// Package journal records supervised siad runs in SQLite.
//
// Each launch gets a row in runs keyed by the controller's run id, and every
// lifecycle event the controller publishes is appended to run_events. The
// history command reads it back; nothing in the launch path depends on it, so
// a journal failure is logged and never stops the daemon.
//
// Schema changes bump schemaVersion in schema.go. The journal is an operator
// aid rather than an archive: on a version mismatch delete journal.db.
package journal
