package units

import (
	"fmt"
	"math/big"

	"go.sia.tech/core/types"
)

var maxCurrency = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Currency converts a hastings amount to a core Currency. The amount must be a
// non-negative whole number that fits in 128 bits.
func (a Amount) Currency() (types.Currency, error) {
	i, err := a.Int()
	if err != nil {
		return types.Currency{}, err
	}
	if i.Sign() < 0 {
		return types.Currency{}, fmt.Errorf("%w: %s", ErrNegative, a)
	}
	if i.Cmp(maxCurrency) > 0 {
		return types.Currency{}, fmt.Errorf("%w: %s", ErrOverflow, a)
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(i, mask).Uint64()
	hi := new(big.Int).Rsh(i, 64).Uint64()
	return types.NewCurrency(lo, hi), nil
}

// AmountFromCurrency returns the hastings amount held by c.
func AmountFromCurrency(c types.Currency) Amount {
	return FromBigInt(c.Big())
}
