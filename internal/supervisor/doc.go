// Package supervisor runs siad in the foreground for `siactl launch`.
//
// Run takes the state-directory lock, launches the daemon through a
// siad.Controller, records every lifecycle event in the run journal, and
// optionally serves Prometheus metrics. On SIGINT or SIGTERM it asks the
// daemon to stop through the API, falls back to signals when that fails, and
// kills the process once the configured grace period runs out.
package supervisor
