package units

import "math/big"

// HastingsPerSiacoin is the number of hastings in one siacoin (10^24).
var HastingsPerSiacoin = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

var hastingsPerSiacoinRat = new(big.Rat).SetInt(HastingsPerSiacoin)

// ToHastings converts a siacoin amount to hastings (the smallest unit).
func ToHastings(siacoins Amount) Amount {
	return Amount{r: new(big.Rat).Mul(siacoins.rat(), hastingsPerSiacoinRat)}
}

// ToSiacoins converts a hastings amount to siacoins (the display unit).
func ToSiacoins(hastings Amount) Amount {
	return Amount{r: new(big.Rat).Quo(hastings.rat(), hastingsPerSiacoinRat)}
}

// Siacoins returns the hastings value of n whole siacoins.
func Siacoins(n int64) Amount {
	return ToHastings(NewAmount(n))
}

// FormatSiacoins renders a hastings amount in siacoins rounded to places
// fractional digits, followed by the SC unit.
func FormatSiacoins(hastings Amount, places int) string {
	return ToSiacoins(hastings).Round(places) + " SC"
}
