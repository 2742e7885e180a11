// Package metrics exposes siad controller activity as Prometheus metrics.
//
// A Recorder implements siad.Hooks, so passing it to siad.WithHooks is all the
// wiring a controller needs. The supervisor serves the Recorder's registry on
// the address configured in [metrics].
package metrics
