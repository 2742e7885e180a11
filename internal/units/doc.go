// Package units converts Sia currency between siacoins and hastings without
// losing precision.
//
// Amounts are exact rationals backed by math/big. Conversions multiply or
// divide by 10^24 and never round, so a hastings value can be converted to
// siacoins and back any number of times and still compare equal to the
// original. Rendering always produces plain decimal digits; exponential
// notation never appears regardless of magnitude.
//
// The package also validates user-entered amounts and 76-character hex
// addresses, and bridges integral hastings amounts to go.sia.tech/core types
// for callers that speak the newer Sia type system.
package units
