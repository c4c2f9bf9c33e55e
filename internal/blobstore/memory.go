package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"

	"pinvault/internal/pv"
)

// MemoryBlobStore is an in-memory implementation of pv.BlobStore backed by an
// absfs memory filesystem, which keeps the same area/id layout as the
// filesystem store. Useful for tests and throwaway vaults. Safe for
// concurrent use.
type MemoryBlobStore struct {
	mu   sync.RWMutex
	fsys absfs.FileSystem
}

// NewMemoryBlobStore creates an empty in-memory store.
func NewMemoryBlobStore() (*MemoryBlobStore, error) {
	fsys, err := memfs.NewFS()
	if err != nil {
		return nil, fmt.Errorf("creating memory filesystem: %w", err)
	}
	for _, area := range []pv.Area{pv.AreaBlobs, pv.AreaThumbs} {
		if err := fsys.MkdirAll("/"+string(area), 0700); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", area, err)
		}
	}
	return &MemoryBlobStore{fsys: fsys}, nil
}

// Put stores the bytes of r, replacing any previous content. The data is
// fully read before the stored file is touched.
func (m *MemoryBlobStore) Put(area pv.Area, id string, r io.Reader) error {
	if err := checkKey(area, id); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.Locate(area, id)
	f, err := m.fsys.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return &pv.IOError{Op: "create", Path: p, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return &pv.IOError{Op: "write", Path: p, Err: err}
	}
	return f.Close()
}

// Open returns a reader over a snapshot of the stored content.
func (m *MemoryBlobStore) Open(area pv.Area, id string) (io.ReadCloser, error) {
	if err := checkKey(area, id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	p := m.Locate(area, id)
	f, err := m.fsys.OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", area, id, pv.ErrNotFound)
		}
		return nil, &pv.IOError{Op: "open", Path: p, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &pv.IOError{Op: "read", Path: p, Err: err}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes stored content. Missing content is ignored.
func (m *MemoryBlobStore) Delete(area pv.Area, id string) error {
	if err := checkKey(area, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.Locate(area, id)
	if err := m.fsys.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
		return &pv.IOError{Op: "remove", Path: p, Err: err}
	}
	return nil
}

// Exists reports whether content is stored under id.
func (m *MemoryBlobStore) Exists(area pv.Area, id string) (bool, error) {
	if err := checkKey(area, id); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := m.fsys.Stat(m.Locate(area, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Locate returns the in-memory path of <area>/<id>.
func (m *MemoryBlobStore) Locate(area pv.Area, id string) string {
	return path.Join("/", string(area), id)
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryBlobStore) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryBlobStore implements pv.BlobStore interface
var _ pv.BlobStore = (*MemoryBlobStore)(nil)
