package pinhash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

const (
	// AlgorithmSHA256 is the default digest.
	AlgorithmSHA256 = "sha256"
	// AlgorithmArgon2id is the memory-hard option.
	AlgorithmArgon2id = "argon2id"

	// DigestLength is the hex length of every digest produced by this package.
	DigestLength = 64
)

var (
	// ErrEmptyInput is returned when the PIN or salt is empty.
	ErrEmptyInput = errors.New("pin and salt are required")
	// ErrUnsupportedAlgorithm is returned by New for an unknown algorithm name.
	ErrUnsupportedAlgorithm = errors.New("unsupported pin hash algorithm")
)

// Hasher computes the fixed-length digest of a PIN and its salt.
type Hasher interface {
	Algorithm() string
	Hash(pin, salt string) (string, error)
}

// New returns the hasher for algorithm. argon2 configuration is only consulted for
// [AlgorithmArgon2id].
func New(algorithm string, argon2 Argon2Config) (Hasher, error) {
	switch algorithm {
	case "", AlgorithmSHA256:
		return SHA256{}, nil
	case AlgorithmArgon2id:
		return NewArgon2(argon2)
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// SHA256 hashes pin ∥ salt with SHA-256.
type SHA256 struct{}

// Algorithm returns "sha256".
func (SHA256) Algorithm() string { return AlgorithmSHA256 }

// Hash returns hex(SHA-256(pin ∥ salt)).
func (SHA256) Hash(pin, salt string) (string, error) {
	if pin == "" || salt == "" {
		return "", ErrEmptyInput
	}
	h := sha256.New()
	h.Write([]byte(pin))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal compares two digests in constant time with respect to their content.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
