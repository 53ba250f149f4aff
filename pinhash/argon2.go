package pinhash

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	keyLength      uint32 = DigestLength / 2
)

// Argon2Config holds Argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

// Argon2 hashes PINs with Argon2id using the PIN salt.
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 validates cfg and returns an Argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Algorithm returns "argon2id".
func (a *Argon2) Algorithm() string { return AlgorithmArgon2id }

// Hash returns hex(Argon2id(pin, salt)) with a 32-byte key.
func (a *Argon2) Hash(pin, salt string) (string, error) {
	if pin == "" || salt == "" {
		return "", ErrEmptyInput
	}
	key := argon2.IDKey(
		[]byte(pin),
		[]byte(salt),
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		keyLength,
	)
	return hex.EncodeToString(key), nil
}

func validateConfig(cfg Argon2Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("argon2 memory must be at least 8192 KiB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("argon2 time cost must be at least 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("argon2 parallelism must be at least 1")
	}
	return nil
}
