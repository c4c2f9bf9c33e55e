package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hash ImportContent records for content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
