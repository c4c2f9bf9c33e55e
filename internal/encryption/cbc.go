package encryption

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"pinvault/internal/pv"
)

// CBCCodec encrypts blobs with AES-256-CBC and PKCS#7 padding.
//
// The ciphertext is not authenticated: flipped bits outside the final block
// decrypt to altered plaintext without error. Only padding damage in the
// final block is detected. XChaChaCodec is the authenticated alternative.
//
// A wrong key is caught by the same padding check, so it fails only about
// 255 times in 256. Otherwise Decrypt returns garbage plaintext and a nil
// error, and callers that need to tell keys apart must validate the content.
type CBCCodec struct {
	rand io.Reader
}

var _ pv.Codec = (*CBCCodec)(nil)

// NewCBCCodec returns a codec drawing IVs from crypto/rand.
func NewCBCCodec() *CBCCodec {
	return &CBCCodec{rand: rand.Reader}
}

// Encrypt writes header and ciphertext to dst, streaming src in 64 KiB chunks.
func (c *CBCCodec) Encrypt(key []byte, src io.Reader, dst io.Writer, name string) error {
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return fmt.Errorf("generating iv: %w", err)
	}
	if err := writeHeader(dst, iv, name); err != nil {
		return err
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	br := bufio.NewReaderSize(src, chunkSize)
	buf := make([]byte, chunkSize+aes.BlockSize)
	for {
		n, final, err := readChunk(br, buf[:chunkSize])
		if err != nil {
			return err
		}
		out := buf[:n]
		if final {
			out = pad(buf, n)
		}
		mode.CryptBlocks(out, out)
		if _, err := dst.Write(out); err != nil {
			return &pv.IOError{Op: "write", Err: err}
		}
		if final {
			return nil
		}
	}
}

// Decrypt validates the header, then streams plaintext to dst. The final
// chunk is held back until its padding has been checked.
func (c *CBCCodec) Decrypt(key []byte, src io.Reader, dst io.Writer) (string, error) {
	iv, name, err := readHeader(src)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	mode := cipher.NewCBCDecrypter(block, iv)

	br := bufio.NewReaderSize(src, chunkSize)
	buf := make([]byte, chunkSize)
	for {
		n, final, err := readChunk(br, buf)
		if err != nil {
			return "", err
		}
		if n%aes.BlockSize != 0 || (final && n == 0) {
			return "", fmt.Errorf("ciphertext is not a whole number of blocks: %w", pv.ErrDecryptFailed)
		}
		out := buf[:n]
		mode.CryptBlocks(out, out)
		if final {
			if out, err = unpad(out); err != nil {
				return "", err
			}
		}
		if _, err := dst.Write(out); err != nil {
			return "", &pv.IOError{Op: "write", Err: err}
		}
		if final {
			return name, nil
		}
	}
}

// ReadMetadata returns the embedded name without touching the ciphertext.
func (c *CBCCodec) ReadMetadata(src io.Reader) (string, error) {
	return readMetadata(src)
}

// pad appends PKCS#7 padding to buf[:n]; buf must have a spare block of capacity.
func pad(buf []byte, n int) []byte {
	p := aes.BlockSize - n%aes.BlockSize
	for i := range p {
		buf[n+i] = byte(p)
	}
	return buf[:n+p]
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty final block: %w", pv.ErrDecryptFailed)
	}
	p := int(b[len(b)-1])
	if p == 0 || p > aes.BlockSize || p > len(b) {
		return nil, fmt.Errorf("invalid padding: %w", pv.ErrDecryptFailed)
	}
	for _, v := range b[len(b)-p:] {
		if int(v) != p {
			return nil, fmt.Errorf("invalid padding: %w", pv.ErrDecryptFailed)
		}
	}
	return b[:len(b)-p], nil
}
