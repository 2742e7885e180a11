package units

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"go.sia.tech/core/types"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrChecksum       = errors.New("address checksum mismatch")
)

const (
	hashSize     = 32
	checksumSize = 6
	// AddressLength is the number of hex characters in an encoded address.
	AddressLength = (hashSize + checksumSize) * 2
)

var addressPattern = regexp.MustCompile(`^[a-f0-9]{76}$`)

// IsValidAddress reports whether s has the shape of a Sia address: exactly 76
// lowercase hex characters. The checksum is not verified.
func IsValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// VerifyAddressChecksum checks that the trailing six bytes of s are the
// blake2b-256 checksum of its 32-byte unlock hash.
func VerifyAddressChecksum(s string) error {
	_, err := ParseAddress(s)
	return err
}

// ParseAddress decodes a 76-character address and verifies its checksum.
func ParseAddress(s string) (types.Address, error) {
	var addr types.Address
	if !IsValidAddress(s) {
		return addr, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	copy(addr[:], raw[:hashSize])
	want := addressChecksum(addr)
	if !bytes.Equal(raw[hashSize:], want) {
		return types.Address{}, fmt.Errorf("%w: %s", ErrChecksum, s)
	}
	return addr, nil
}

// FormatAddress encodes addr as 64 hex characters of hash followed by 12 of
// checksum.
func FormatAddress(addr types.Address) string {
	buf := make([]byte, 0, hashSize+checksumSize)
	buf = append(buf, addr[:]...)
	buf = append(buf, addressChecksum(addr)...)
	return hex.EncodeToString(buf)
}

func addressChecksum(addr types.Address) []byte {
	sum := blake2b.Sum256(addr[:])
	return sum[:checksumSize]
}
