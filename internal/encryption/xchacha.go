package encryption

import (
	"bufio"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/crypto/chacha20poly1305"

	"pinvault/internal/pv"
)

// XChaChaCodec encrypts blobs as a sequence of independently sealed 64 KiB
// XChaCha20-Poly1305 chunks. It keeps the header layout of CBCCodec; the IV
// field holds the random nonce prefix.
//
// Each chunk nonce is prefix(16) | counter(4, BE) | final flag(1) | 0(3),
// and the display name is authenticated as associated data, so reordering,
// truncation, header edits and bit flips all fail with ErrDecryptFailed.
type XChaChaCodec struct {
	rand io.Reader
}

var _ pv.Codec = (*XChaChaCodec)(nil)

// NewXChaChaCodec returns a codec drawing nonce prefixes from crypto/rand.
func NewXChaChaCodec() *XChaChaCodec {
	return &XChaChaCodec{rand: rand.Reader}
}

// Encrypt writes header and sealed chunks to dst.
func (c *XChaChaCodec) Encrypt(key []byte, src io.Reader, dst io.Writer, name string) error {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}

	prefix := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, prefix); err != nil {
		return fmt.Errorf("generating nonce prefix: %w", err)
	}
	if err := writeHeader(dst, prefix, name); err != nil {
		return err
	}

	br := bufio.NewReaderSize(src, chunkSize)
	plain := make([]byte, chunkSize)
	sealed := make([]byte, 0, chunkSize+aead.Overhead())
	for counter := uint32(0); ; counter++ {
		n, final, err := readChunk(br, plain)
		if err != nil {
			return err
		}
		if counter == math.MaxUint32 && !final {
			return fmt.Errorf("content exceeds maximum chunk count")
		}
		sealed = aead.Seal(sealed[:0], chunkNonce(prefix, counter, final), plain[:n], []byte(name))
		if _, err := dst.Write(sealed); err != nil {
			return &pv.IOError{Op: "write", Err: err}
		}
		if final {
			return nil
		}
	}
}

// Decrypt opens each chunk in turn. Nothing of a chunk reaches dst before
// its tag has been verified.
func (c *XChaChaCodec) Decrypt(key []byte, src io.Reader, dst io.Writer) (string, error) {
	prefix, name, err := readHeader(src)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	br := bufio.NewReaderSize(src, chunkSize+aead.Overhead())
	sealed := make([]byte, chunkSize+aead.Overhead())
	plain := make([]byte, 0, chunkSize)
	for counter := uint32(0); ; counter++ {
		n, final, err := readChunk(br, sealed)
		if err != nil {
			return "", err
		}
		if n < aead.Overhead() {
			return "", fmt.Errorf("truncated chunk %d: %w", counter, pv.ErrDecryptFailed)
		}
		plain, err = openChunk(aead, plain[:0], prefix, counter, final, sealed[:n], name)
		if err != nil {
			return "", err
		}
		if _, err := dst.Write(plain); err != nil {
			return "", &pv.IOError{Op: "write", Err: err}
		}
		if final {
			return name, nil
		}
	}
}

// ReadMetadata returns the embedded name without opening any chunk. The name
// is not authenticated until the content is decrypted.
func (c *XChaChaCodec) ReadMetadata(src io.Reader) (string, error) {
	return readMetadata(src)
}

func openChunk(aead cipher.AEAD, dst, prefix []byte, counter uint32, final bool, sealed []byte, name string) ([]byte, error) {
	out, err := aead.Open(dst, chunkNonce(prefix, counter, final), sealed, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", counter, pv.ErrDecryptFailed)
	}
	return out, nil
}

func chunkNonce(prefix []byte, counter uint32, final bool) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	copy(nonce, prefix)
	binary.BigEndian.PutUint32(nonce[ivSize:], counter)
	if final {
		nonce[ivSize+4] = 1
	}
	return nonce
}
