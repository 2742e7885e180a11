package units_test

import (
	"encoding/json"
	"errors"
	"math/big"
	"math/rand/v2"
	"strings"
	"testing"

	"go.sia.tech/core/types"

	"siactl/internal/units"
)

func TestToHastingsScalesBy10To24(t *testing.T) {
	cases := []struct {
		siacoins string
		hastings string
	}{
		{"0", "0"},
		{"1", "1000000000000000000000000"},
		{"0.000000000000000000000001", "1"},
		{"1.5", "1500000000000000000000000"},
		{"100000000000000000000000", "100000000000000000000000000000000000000000000000"},
	}
	for _, tc := range cases {
		got := units.ToHastings(units.MustParseAmount(tc.siacoins)).String()
		if got != tc.hastings {
			t.Fatalf("ToHastings(%s) = %s, want %s", tc.siacoins, got, tc.hastings)
		}
	}
}

func TestToSiacoinsDividesBy10To24(t *testing.T) {
	cases := []struct {
		hastings string
		siacoins string
	}{
		{"1", "0.000000000000000000000001"},
		{"1000000000000000000000000", "1"},
		{"123456789", "0.000000000000000123456789"},
		{"1337338498282837188273000000000000000000000000", "1337338498282837188273"},
	}
	for _, tc := range cases {
		got := units.ToSiacoins(units.MustParseAmount(tc.hastings)).String()
		if got != tc.siacoins {
			t.Fatalf("ToSiacoins(%s) = %s, want %s", tc.hastings, got, tc.siacoins)
		}
	}
}

func TestRandomConversionsMatchScale(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	maxSC := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(23), nil))
	maxH := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(150), nil))
	scale := new(big.Rat).SetInt(units.HastingsPerSiacoin)

	for i := 0; i < 999; i++ {
		frac := big.NewRat(int64(rng.IntN(100000)), 100000)

		sc := new(big.Rat).Mul(maxSC, frac)
		wantH := new(big.Rat).Mul(sc, scale)
		if got := units.ToHastings(units.FromRat(sc)); got.Rat().Cmp(wantH) != 0 {
			t.Fatalf("ToHastings(%s) = %s, want %s", sc.RatString(), got, wantH.RatString())
		}

		h := new(big.Rat).Mul(maxH, frac)
		wantSC := new(big.Rat).Quo(h, scale)
		if got := units.ToSiacoins(units.FromRat(h)); got.Rat().Cmp(wantSC) != 0 {
			t.Fatalf("ToSiacoins(%s) = %s, want %s", h.RatString(), got, wantSC.RatString())
		}
	}
}

func TestRoundTripDoesNotLosePrecision(t *testing.T) {
	original := units.MustParseAmount("1337338498282837188273")
	converted := original
	for i := 0; i < 10000; i++ {
		converted = units.ToSiacoins(units.ToHastings(converted))
	}
	if converted.String() != original.String() {
		t.Fatalf("siacoin round trip drifted: got %s, want %s", converted, original)
	}

	hastings := units.MustParseAmount("98765432109876543210987654321")
	back := hastings
	for i := 0; i < 10000; i++ {
		back = units.ToHastings(units.ToSiacoins(back))
	}
	if !back.Equal(hastings) || back.String() != "98765432109876543210987654321" {
		t.Fatalf("hastings round trip drifted: got %s", back)
	}
}

func TestRenderingNeverUsesExponent(t *testing.T) {
	ten := big.NewInt(10)
	for exp := 0; exp <= 150; exp++ {
		h := units.FromBigInt(new(big.Int).Exp(ten, big.NewInt(int64(exp)), nil))
		for _, rendered := range []string{
			h.String(),
			units.ToSiacoins(h).String(),
			units.ToHastings(h).String(),
		} {
			if strings.ContainsAny(rendered, "eE") {
				t.Fatalf("10^%d rendered with exponent: %s", exp, rendered)
			}
		}
		reparsed := units.MustParseAmount(units.ToSiacoins(h).String())
		if !units.ToHastings(reparsed).Equal(h) {
			t.Fatalf("10^%d did not survive rendering", exp)
		}
	}

	big150 := units.ToSiacoins(units.MustParseAmount("1e150")).String()
	if want := "1" + strings.Repeat("0", 126); big150 != want {
		t.Fatalf("unexpected rendering of 10^150 hastings: %s", big150)
	}
}

func TestRepeatingDecimalRoundsTo30Places(t *testing.T) {
	third := units.FromRat(big.NewRat(1, 3))
	if got, want := third.String(), "0."+strings.Repeat("3", 30); got != want {
		t.Fatalf("String() = %s, want %s", got, want)
	}
}

func TestIsValidAmount(t *testing.T) {
	cases := map[string]bool{
		"1":        true,
		"1.5":      true,
		"-2":       true,
		"+3":       true,
		".5":       true,
		"1.":       true,
		"1e150":    true,
		"2.5E-3":   true,
		" 42 ":     true,
		"":         false,
		"abc":      false,
		"NaN":      false,
		"Infinity": false,
		"1e":       false,
		"0x10":     false,
		"1,000":    false,
		"1/3":      false,
		"1e99999":  false,
	}
	for input, want := range cases {
		if got := units.IsValidAmount(input); got != want {
			t.Fatalf("IsValidAmount(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestIsValidAddress(t *testing.T) {
	valid := strings.Repeat("a1", 38)
	digits := strings.Repeat("0123456789", 7) + "abcdef"
	cases := map[string]bool{
		valid:                   true,
		digits:                  true,
		strings.ToUpper(valid):  false,
		valid[:75]:              false,
		valid + "0":             false,
		strings.Repeat("g", 76): false,
		"":                      false,
		" " + valid[:75]:        false,
	}
	for input, want := range cases {
		if got := units.IsValidAddress(input); got != want {
			t.Fatalf("IsValidAddress(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseAddressVerifiesChecksum(t *testing.T) {
	var addr types.Address
	for i := range addr {
		addr[i] = byte(i * 7)
	}
	encoded := units.FormatAddress(addr)
	if len(encoded) != units.AddressLength || !units.IsValidAddress(encoded) {
		t.Fatalf("formatted address has unexpected shape: %s", encoded)
	}

	parsed, err := units.ParseAddress(encoded)
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != addr {
		t.Fatalf("parsed address mismatch")
	}

	last := encoded[len(encoded)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	tampered := encoded[:len(encoded)-1] + string(flipped)
	if err := units.VerifyAddressChecksum(tampered); !errors.Is(err, units.ErrChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
	if _, err := units.ParseAddress("nope"); !errors.Is(err, units.ErrInvalidAddress) {
		t.Fatalf("expected invalid address error, got %v", err)
	}
}

func TestCurrencyBridge(t *testing.T) {
	one := units.Siacoins(1)
	c, err := one.Currency()
	if err != nil {
		t.Fatalf("Currency: %v", err)
	}
	if got := units.AmountFromCurrency(c); !got.Equal(one) {
		t.Fatalf("currency round trip: got %s, want %s", got, one)
	}

	large := units.MustParseAmount("340282366920938463463374607431768211455")
	c, err = large.Currency()
	if err != nil {
		t.Fatalf("Currency(max): %v", err)
	}
	if got := units.AmountFromCurrency(c); !got.Equal(large) {
		t.Fatalf("max currency round trip: got %s", got)
	}

	if _, err := large.Add(units.NewAmount(1)).Currency(); !errors.Is(err, units.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := units.MustParseAmount("1.5").Currency(); !errors.Is(err, units.ErrNotIntegral) {
		t.Fatalf("expected not integral, got %v", err)
	}
	if _, err := units.NewAmount(-1).Currency(); !errors.Is(err, units.ErrNegative) {
		t.Fatalf("expected negative, got %v", err)
	}
}

func TestFormatSiacoinsRoundsForDisplay(t *testing.T) {
	cases := map[string]string{
		"1234500000000000000000000": "1.23 SC",
		"1235000000000000000000000": "1.24 SC",
		"0":                         "0.00 SC",
		"1":                         "0.00 SC",
		"5000000000000000000000000": "5.00 SC",
	}
	for hastings, want := range cases {
		if got := units.FormatSiacoins(units.MustParseAmount(hastings), 2); got != want {
			t.Fatalf("FormatSiacoins(%s) = %s, want %s", hastings, got, want)
		}
	}
}

func TestAmountJSON(t *testing.T) {
	var payload struct {
		Quoted units.Amount `json:"quoted"`
		Bare   units.Amount `json:"bare"`
		Null   units.Amount `json:"null"`
	}
	raw := `{"quoted":"123456789012345678901234567890","bare":42,"null":null}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Quoted.String() != "123456789012345678901234567890" {
		t.Fatalf("quoted amount lost precision: %s", payload.Quoted)
	}
	if payload.Bare.String() != "42" || !payload.Null.IsZero() {
		t.Fatalf("unexpected decode: bare=%s null=%s", payload.Bare, payload.Null)
	}

	encoded, err := json.Marshal(payload.Quoted)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `"123456789012345678901234567890"` {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	var bad units.Amount
	if err := json.Unmarshal([]byte(`"twelve"`), &bad); !errors.Is(err, units.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}
