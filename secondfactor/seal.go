package secondfactor

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSecretCorrupt is returned when a sealed secret cannot be opened.
var ErrSecretCorrupt = errors.New("sealed secret corrupt")

// sealer encrypts TOTP secrets at rest. The principal is bound as additional
// data so a sealed blob cannot be moved to another principal.
type sealer struct {
	key []byte
}

func newSealer(key []byte) (*sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &sealer{key: append([]byte(nil), key...)}, nil
}

func (s *sealer) seal(principalID, secret string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(secret)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(secret), []byte(principalID))
	return base64.RawStdEncoding.EncodeToString(out), nil
}

func (s *sealer) open(principalID, sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretCorrupt, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrSecretCorrupt
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, []byte(principalID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSecretCorrupt, err)
	}
	return string(pt), nil
}
