package encryption

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"pinvault/internal/pv"
)

// Key derivation parameters. The salt is fixed application-wide, so two
// vaults protected by the same PIN share a key; the PIN space is small and
// this derivation is not meant to resist offline guessing on its own.
const (
	KeySalt       = "VaultX_Fixed_Salt"
	KeyIterations = 65536
)

// DeriveKey turns a PIN into the 32-byte vault key using PBKDF2-HMAC-SHA256.
// It is deterministic and performs no I/O.
func DeriveKey(pin []byte) []byte {
	return pbkdf2.Key(pin, []byte(KeySalt), KeyIterations, pv.KeySize, sha256.New)
}

// ValidatePIN checks that pin is exactly length ASCII digits.
func ValidatePIN(pin string, length int) error {
	if len(pin) != length {
		return fmt.Errorf("pin must be %d digits: %w", length, pv.ErrInvalidPIN)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("pin must contain digits only: %w", pv.ErrInvalidPIN)
		}
	}
	return nil
}
