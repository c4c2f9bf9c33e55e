package pv

import "io"

// KeySize is the length in bytes of a derived vault key.
const KeySize = 32

// MaxNameLen bounds the display name stored in a blob header.
const MaxNameLen = 255

// Codec encrypts and decrypts blobs. Every blob carries a cleartext header
// with a per-blob IV and the item's display name, followed by ciphertext:
//
//	IV(16) | nameLen(4, big-endian) | name(nameLen) | ciphertext
//
// Implementations stream in fixed-size chunks so memory use does not depend
// on content size.
type Codec interface {
	// Encrypt reads plaintext from src and writes a complete blob to dst.
	Encrypt(key []byte, src io.Reader, dst io.Writer, name string) error

	// Decrypt reads a blob from src, writes plaintext to dst and returns the
	// embedded name. Fails with ErrCorruptBlob on bad framing and
	// ErrDecryptFailed on a wrong key or damaged ciphertext.
	Decrypt(key []byte, src io.Reader, dst io.Writer) (string, error)

	// ReadMetadata returns the embedded name without decrypting the body.
	ReadMetadata(src io.Reader) (string, error)
}
