package secondfactor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/MrEthical07/pinauth/internal"
)

const (
	// BackupCodeCount is the number of codes issued per generation.
	BackupCodeCount = 10
	// BackupCodeLength is the number of alphabet characters per code.
	BackupCodeLength = 10
)

// NewBackupCode draws a code from the unambiguous PIN alphabet.
func NewBackupCode(length int, randomIndex func(int) (int, error)) (string, error) {
	return internal.NewCode(internal.PINAlphabet, length, randomIndex)
}

// FormatBackupCode splits a code in two halves for display.
func FormatBackupCode(code string) string {
	n := len(code)
	if n < 8 {
		return code
	}
	mid := n / 2
	return code[:mid] + "-" + code[mid:]
}

// CanonicalizeBackupCode undoes display formatting and case.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// BackupCodeHash binds a canonical code to its principal.
func BackupCodeHash(principalID, canonicalCode string) string {
	data := make([]byte, 0, len(principalID)+1+len(canonicalCode))
	data = append(data, principalID...)
	data = append(data, 0)
	data = append(data, canonicalCode...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
