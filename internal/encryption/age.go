package encryption

import (
	"fmt"
	"io"

	"filippo.io/age"

	"pinvault/internal/pv"
)

// AgeSealer implements pv.Sealer with age's scrypt passphrase recipient, so
// sealed exports can be opened with the stock age tool (age -d).
type AgeSealer struct {
	// workFactor overrides the scrypt work factor when non-zero.
	workFactor int
}

var _ pv.Sealer = (*AgeSealer)(nil)

// NewAgeSealer creates a sealer with age's default scrypt work factor.
func NewAgeSealer() *AgeSealer {
	return &AgeSealer{}
}

// NewAgeSealerWithWorkFactor creates a sealer with a fixed scrypt work
// factor (log2 of the cost). Low factors are only suitable for tests.
func NewAgeSealerWithWorkFactor(logN int) *AgeSealer {
	return &AgeSealer{workFactor: logN}
}

// Seal returns a writer that encrypts everything written to it into w.
// The caller must Close it to flush the final chunk.
func (s *AgeSealer) Seal(w io.Writer, passphrase string) (io.WriteCloser, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase is empty")
	}
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	enc, err := age.Encrypt(w, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encrypted writer: %w", err)
	}
	return enc, nil
}

// Unseal returns a reader over the plaintext of a sealed export.
func (s *AgeSealer) Unseal(r io.Reader, passphrase string) (io.Reader, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	if s.workFactor > 0 {
		identity.SetMaxWorkFactor(s.workFactor)
	}

	dec, err := age.Decrypt(r, identity)
	if err != nil {
		return nil, fmt.Errorf("opening sealed export: %w", err)
	}
	return dec, nil
}
