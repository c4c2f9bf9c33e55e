package indexstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pinvault/internal/pv"
)

// FileName is the index document under the vault root.
const FileName = "index.bin"

// FileIndexStore keeps the index as one encrypted document on disk.
type FileIndexStore struct {
	path  string
	codec pv.Codec

	// rename is swapped in tests to simulate a crash before the final step.
	rename func(oldpath, newpath string) error
}

// NewFileIndexStore stores the index at <vaultRoot>/index.bin.
func NewFileIndexStore(vaultRoot string, codec pv.Codec) *FileIndexStore {
	return &FileIndexStore{
		path:   filepath.Join(vaultRoot, FileName),
		codec:  codec,
		rename: os.Rename,
	}
}

// Path returns the location of the index document.
func (s *FileIndexStore) Path() string {
	return s.path
}

// Load decrypts and parses the index document.
func (s *FileIndexStore) Load(key []byte) (*pv.Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return pv.NewIndex(), nil
		}
		return nil, &pv.IOError{Op: "read", Path: s.path, Err: err}
	}
	return decode(s.codec, key, data)
}

// Save encrypts the index and replaces the document with write-temp-then-rename.
func (s *FileIndexStore) Save(key []byte, index *pv.Index) error {
	var buf bytes.Buffer
	if err := encode(s.codec, key, index, &buf); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmpFile, err := os.CreateTemp(dir, ".tmp-index-*")
	if err != nil {
		return &pv.IOError{Op: "create", Path: s.path, Err: err}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		tmpFile.Close()
		return &pv.IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return &pv.IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &pv.IOError{Op: "close", Path: tmpPath, Err: err}
	}

	if err := s.rename(tmpPath, s.path); err != nil {
		return &pv.IOError{Op: "rename", Path: s.path, Err: err}
	}

	success = true
	return nil
}

func encode(codec pv.Codec, key []byte, index *pv.Index, buf *bytes.Buffer) error {
	doc, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := codec.Encrypt(key, bytes.NewReader(doc), buf, FileName); err != nil {
		return fmt.Errorf("failed to encrypt index: %w", err)
	}
	return nil
}

// decode never returns a nil index: unreadable documents yield an empty one
// alongside the ErrCorruptIndex error.
func decode(codec pv.Codec, key []byte, data []byte) (*pv.Index, error) {
	var doc bytes.Buffer
	if _, err := codec.Decrypt(key, bytes.NewReader(data), &doc); err != nil {
		return pv.NewIndex(), fmt.Errorf("%w: %w", pv.ErrCorruptIndex, err)
	}

	index := pv.NewIndex()
	if err := json.Unmarshal(doc.Bytes(), index); err != nil {
		return pv.NewIndex(), fmt.Errorf("%w: %w", pv.ErrCorruptIndex, err)
	}
	return index, nil
}

// Compile-time check that FileIndexStore implements pv.IndexStore interface
var _ pv.IndexStore = (*FileIndexStore)(nil)
