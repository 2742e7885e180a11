package units

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNotIntegral   = errors.New("amount is not a whole number of hastings")
	ErrNegative      = errors.New("amount is negative")
	ErrOverflow      = errors.New("amount overflows 128 bits")
)

// maxExponent bounds the exponent accepted by ParseAmount so a short input
// such as "1e999999999" cannot allocate an enormous integer.
const maxExponent = 4096

// fallbackPlaces is the number of fractional digits rendered for values whose
// decimal expansion does not terminate.
const fallbackPlaces = 30

var amountPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE]([+-]?\d+))?$`)

// Amount is an exact decimal quantity. The zero value is zero.
type Amount struct {
	r *big.Rat
}

// NewAmount returns an Amount holding v.
func NewAmount(v int64) Amount {
	return Amount{r: new(big.Rat).SetInt64(v)}
}

// FromBigInt returns an Amount holding a copy of v.
func FromBigInt(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{r: new(big.Rat).SetInt(v)}
}

// FromRat returns an Amount holding a copy of v.
func FromRat(v *big.Rat) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{r: new(big.Rat).Set(v)}
}

// ParseAmount parses a finite decimal string with an optional sign, fraction
// and exponent. NaN, infinities, hex and empty strings are rejected.
func ParseAmount(s string) (Amount, error) {
	trimmed := strings.TrimSpace(s)
	m := amountPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if exp := strings.TrimLeft(m[3], "+-"); exp != "" {
		exp = strings.TrimLeft(exp, "0")
		if len(exp) > 4 || (exp != "" && atoiSmall(exp) > maxExponent) {
			return Amount{}, fmt.Errorf("%w: exponent out of range in %q", ErrInvalidAmount, s)
		}
	}
	r, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{r: r}, nil
}

// MustParseAmount is ParseAmount for constants and tests; it panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsValidAmount reports whether s parses as a finite number.
func IsValidAmount(s string) bool {
	_, err := ParseAmount(s)
	return err == nil
}

func atoiSmall(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

func (a Amount) rat() *big.Rat {
	if a.r == nil {
		return new(big.Rat)
	}
	return a.r
}

// Rat returns a copy of the underlying rational.
func (a Amount) Rat() *big.Rat {
	return new(big.Rat).Set(a.rat())
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int {
	return a.rat().Sign()
}

// Cmp compares a and b.
func (a Amount) Cmp(b Amount) int {
	return a.rat().Cmp(b.rat())
}

// Equal reports whether a and b hold the same value.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a.Sign() == 0
}

// IsIntegral reports whether a has no fractional part.
func (a Amount) IsIntegral() bool {
	return a.rat().IsInt()
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{r: new(big.Rat).Add(a.rat(), b.rat())}
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{r: new(big.Rat).Sub(a.rat(), b.rat())}
}

// Mul returns a*b.
func (a Amount) Mul(b Amount) Amount {
	return Amount{r: new(big.Rat).Mul(a.rat(), b.rat())}
}

// Int returns a as an integer. It fails with ErrNotIntegral when a has a
// fractional part.
func (a Amount) Int() (*big.Int, error) {
	r := a.rat()
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %s", ErrNotIntegral, a)
	}
	return new(big.Int).Set(r.Num()), nil
}

// String renders a as plain decimal digits. Terminating expansions are
// rendered exactly with no trailing zeros; repeating expansions are rounded to
// 30 fractional digits.
func (a Amount) String() string {
	r := a.rat()
	if r.IsInt() {
		return r.Num().String()
	}
	places, exact := decimalPlaces(r.Denom())
	if !exact {
		places = fallbackPlaces
	}
	return trimFraction(r.FloatString(places))
}

// Round renders a rounded to the given number of fractional digits, halves
// away from zero. Trailing zeros are kept so columns line up.
func (a Amount) Round(places int) string {
	if places < 0 {
		places = 0
	}
	return a.rat().FloatString(places)
}

// decimalPlaces returns the number of fractional digits needed to print 1/d
// exactly, and whether the expansion terminates at all.
func decimalPlaces(d *big.Int) (int, bool) {
	rest := new(big.Int).Set(d)
	two, five := big.NewInt(2), big.NewInt(5)
	var twos, fives int
	mod := new(big.Int)
	for {
		q, m := new(big.Int).QuoRem(rest, two, mod)
		if m.Sign() != 0 {
			break
		}
		rest = q
		twos++
	}
	for {
		q, m := new(big.Int).QuoRem(rest, five, mod)
		if m.Sign() != 0 {
			break
		}
		rest = q
		fives++
	}
	if rest.Cmp(big.NewInt(1)) != 0 {
		return 0, false
	}
	return max(twos, fives), true
}

func trimFraction(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes a as a JSON string so no precision is lost to float
// decoding on the other side.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both quoted strings, as the Sia API sends currency,
// and bare JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
		return a.UnmarshalText([]byte(s))
	}
	return a.UnmarshalText(data)
}
