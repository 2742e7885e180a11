// Package siad launches the Sia daemon and talks to its HTTP API.
//
// A Controller owns at most one siad child process. It turns caller settings
// into command-line flags, redirects the child's output to siad-output.log,
// watches for the child to exit, and polls the API until the daemon answers.
// The lifecycle is tracked as a small state machine (NotStarted, Starting,
// Ready, Stopped) driven only by probe results and exit notifications; callers
// observe transitions through Subscribe.
//
// A Client relays API calls with the headers and timeouts siad expects. All
// calls share one bounded connection pool, so bursts against a slow daemon
// queue for a socket instead of opening unbounded connections. Failures are
// reported as *ProcessError, *ConnectionError or *APIError; each also matches
// the corresponding services marker with errors.Is.
//
// The endpoint helpers (Consensus, Wallet, DaemonVersion, ...) are thin typed
// wrappers over Call. Currency fields decode into units.Amount so balances
// keep full precision.
package siad
