package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

// PINAlphabet excludes I, O, 0 and 1 so that generated PINs cannot be misread.
const PINAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	// PINLength is the fixed PIN length.
	PINLength = 6
	// SaltSize is the raw salt size in bytes; encoded salts are twice as long.
	SaltSize = 16
)

var errInvalidAlphabet = errors.New("invalid code alphabet")

// CryptoRandomIndex returns a uniform index in [0, max) from crypto/rand.
func CryptoRandomIndex(max int) (int, error) {
	if max <= 0 {
		return 0, errInvalidAlphabet
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// NewCode draws length characters uniformly from alphabet using randomIndex.
func NewCode(alphabet string, length int, randomIndex func(int) (int, error)) (string, error) {
	if alphabet == "" || length <= 0 {
		return "", errInvalidAlphabet
	}
	if randomIndex == nil {
		randomIndex = CryptoRandomIndex
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		idx, err := randomIndex(len(alphabet))
		if err != nil {
			return "", err
		}
		if idx < 0 || idx >= len(alphabet) {
			return "", errInvalidAlphabet
		}
		b.WriteByte(alphabet[idx])
	}
	return b.String(), nil
}

// NewPIN returns a fresh PIN drawn from [PINAlphabet].
func NewPIN() (string, error) {
	return NewCode(PINAlphabet, PINLength, CryptoRandomIndex)
}

// ValidPINFormat reports whether pin is exactly PINLength ASCII letters or digits,
// in any case.
func ValidPINFormat(pin string) bool {
	if len(pin) != PINLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		c := pin[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

// NormalizePIN upper-cases a PIN. Callers validate the format first.
func NormalizePIN(pin string) string {
	return strings.ToUpper(pin)
}

// NewSalt returns SaltSize random bytes, hex encoded.
func NewSalt() (string, error) {
	var raw [SaltSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}
