package encryption

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"pinvault/internal/pv"
)

const (
	// ivSize is the length of the per-blob IV that opens every header.
	ivSize = 16

	// chunkSize is the plaintext unit both codecs stream in.
	chunkSize = 64 * 1024
)

// writeHeader writes IV | nameLen (uint32 BE) | name.
func writeHeader(w io.Writer, iv []byte, name string) error {
	if len(name) > pv.MaxNameLen {
		return fmt.Errorf("name is %d bytes, limit is %d: %w", len(name), pv.MaxNameLen, pv.ErrInvalidName)
	}
	hdr := make([]byte, 0, ivSize+4+len(name))
	hdr = append(hdr, iv...)
	hdr = binary.BigEndian.AppendUint32(hdr, uint32(len(name)))
	hdr = append(hdr, name...)
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}

// readHeader parses the cleartext header and leaves r positioned at the
// first ciphertext byte.
func readHeader(r io.Reader) ([]byte, string, error) {
	fixed := make([]byte, ivSize+4)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, "", headerError(err, "short header")
	}

	nameLen := binary.BigEndian.Uint32(fixed[ivSize:])
	if nameLen > pv.MaxNameLen {
		return nil, "", fmt.Errorf("name length %d exceeds %d: %w", nameLen, pv.MaxNameLen, pv.ErrCorruptBlob)
	}

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, "", headerError(err, "truncated name")
	}
	return fixed[:ivSize], string(name), nil
}

func headerError(err error, msg string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", msg, pv.ErrCorruptBlob)
	}
	return &pv.IOError{Op: "read", Err: err}
}

// readMetadata is shared by both codecs: the header layout is identical.
func readMetadata(r io.Reader) (string, error) {
	_, name, err := readHeader(r)
	return name, err
}

// readChunk fills buf from r. It reports final=true when the input ended in
// or right after this chunk.
func readChunk(r peekReader, buf []byte) (n int, final bool, err error) {
	n, err = io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, true, nil
	case err != nil:
		return n, false, &pv.IOError{Op: "read", Err: err}
	}
	if _, err := r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return n, true, nil
		}
		return n, false, &pv.IOError{Op: "read", Err: err}
	}
	return n, false, nil
}

type peekReader interface {
	io.Reader
	Peek(n int) ([]byte, error)
}
