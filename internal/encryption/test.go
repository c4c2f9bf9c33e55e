package encryption

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"

	"pinvault/internal/pv"
)

// testMarker opens the body of every TestCodec blob.
var testMarker = []byte("PVTEST\x00\x00")

// TestCodec is a deterministic, non-encrypting codec for tests. It writes the
// regular header with an all-zero IV, then a marker, a short key fingerprint,
// and the plaintext unchanged. Decrypting with a different key fails with
// ErrDecryptFailed, so key mix-ups still surface in tests that use it.
type TestCodec struct{}

var _ pv.Codec = (*TestCodec)(nil)

// NewTestCodec creates a new TestCodec.
func NewTestCodec() *TestCodec {
	return &TestCodec{}
}

func (c *TestCodec) Encrypt(key []byte, src io.Reader, dst io.Writer, name string) error {
	if err := writeHeader(dst, make([]byte, ivSize), name); err != nil {
		return err
	}
	if _, err := dst.Write(append(bytes.Clone(testMarker), fingerprint(key)...)); err != nil {
		return fmt.Errorf("writing test marker: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (c *TestCodec) Decrypt(key []byte, src io.Reader, dst io.Writer) (string, error) {
	_, name, err := readHeader(src)
	if err != nil {
		return "", err
	}

	marker := make([]byte, len(testMarker)+8)
	if _, err := io.ReadFull(src, marker); err != nil {
		return "", fmt.Errorf("reading test marker: %w", pv.ErrDecryptFailed)
	}
	if !bytes.Equal(marker[:len(testMarker)], testMarker) || !bytes.Equal(marker[len(testMarker):], fingerprint(key)) {
		return "", fmt.Errorf("test marker mismatch: %w", pv.ErrDecryptFailed)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copying data: %w", err)
	}
	return name, nil
}

func (c *TestCodec) ReadMetadata(src io.Reader) (string, error) {
	return readMetadata(src)
}

func fingerprint(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:8]
}
