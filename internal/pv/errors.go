package pv

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers match them with errors.Is; every layer wraps them
// with context using fmt.Errorf("...: %w", err) or the structured types below.
var (
	// ErrCorruptBlob reports a blob whose header framing cannot be parsed.
	ErrCorruptBlob = errors.New("corrupt blob")
	// ErrDecryptFailed reports a wrong key, bad padding, or failed authentication.
	ErrDecryptFailed = errors.New("decryption failed")
	// ErrCorruptIndex reports an index document that exists but cannot be read.
	ErrCorruptIndex = errors.New("corrupt index")
	ErrNotFound     = errors.New("not found")
	// ErrInvalidMove reports a move that would create a cycle or targets a non-folder.
	ErrInvalidMove = errors.New("invalid move")
	ErrInvalidName = errors.New("invalid name")
	ErrIO          = errors.New("i/o failure")

	ErrInvalidPIN          = errors.New("invalid pin")
	ErrSessionClosed       = errors.New("session closed")
	ErrRendererUnavailable = errors.New("renderer unavailable")
)

// BlobError describes a failure on a single stored blob.
type BlobError struct {
	Op  string // "put", "get", "delete", "metadata"
	ID  string // item id
	Err error
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *BlobError) Unwrap() error { return e.Err }

// IOError describes a storage failure. It matches ErrIO in addition to its cause.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("io error: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsCorruption reports whether err signals unreadable stored data.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorruptBlob) || errors.Is(err, ErrCorruptIndex)
}
