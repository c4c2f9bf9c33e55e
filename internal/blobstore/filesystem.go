package blobstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"pinvault/internal/pv"
)

// FileSystemBlobStore is a filesystem-based implementation of pv.BlobStore.
// It lays content out under the vault root by item id:
//
//	<root>/
//	  blobs/
//	    <id>     (encrypted item content)
//	  thumbs/
//	    <id>     (rendered JPEG previews)
type FileSystemBlobStore struct {
	root string
}

// NewFileSystemBlobStore creates the area directories under root.
func NewFileSystemBlobStore(root string) (*FileSystemBlobStore, error) {
	for _, area := range []pv.Area{pv.AreaBlobs, pv.AreaThumbs} {
		if err := os.MkdirAll(filepath.Join(root, string(area)), 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", area, err)
		}
	}
	return &FileSystemBlobStore{root: root}, nil
}

// Put writes r to <area>/<id> using atomic write (temp file + rename).
func (s *FileSystemBlobStore) Put(area pv.Area, id string, r io.Reader) error {
	destPath, err := s.path(area, id)
	if err != nil {
		return err
	}

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return &pv.IOError{Op: "create", Path: destPath, Err: err}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return &pv.IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &pv.IOError{Op: "close", Path: tmpPath, Err: err}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return &pv.IOError{Op: "rename", Path: destPath, Err: err}
	}

	success = true
	return nil
}

// Open returns a reader over <area>/<id>.
func (s *FileSystemBlobStore) Open(area pv.Area, id string) (io.ReadCloser, error) {
	p, err := s.path(area, id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", area, id, pv.ErrNotFound)
		}
		return nil, &pv.IOError{Op: "open", Path: p, Err: err}
	}
	return f, nil
}

// Delete removes <area>/<id>. Missing files are ignored.
func (s *FileSystemBlobStore) Delete(area pv.Area, id string) error {
	p, err := s.path(area, id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &pv.IOError{Op: "remove", Path: p, Err: err}
	}
	return nil
}

// Exists reports whether <area>/<id> is a regular file.
func (s *FileSystemBlobStore) Exists(area pv.Area, id string) (bool, error) {
	p, err := s.path(area, id)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &pv.IOError{Op: "stat", Path: p, Err: err}
	}
	return info.Mode().IsRegular(), nil
}

// Locate returns the file path of <area>/<id>.
func (s *FileSystemBlobStore) Locate(area pv.Area, id string) string {
	return filepath.Join(s.root, string(area), id)
}

// ValidateSetup verifies that the store directories are accessible.
func (s *FileSystemBlobStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", s.root)
	}

	for _, area := range []pv.Area{pv.AreaBlobs, pv.AreaThumbs} {
		dir := filepath.Join(s.root, string(area))
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%s directory not accessible: %w", area, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s path is not a directory: %s", area, dir)
		}
	}
	return nil
}

func (s *FileSystemBlobStore) path(area pv.Area, id string) (string, error) {
	if err := checkKey(area, id); err != nil {
		return "", err
	}
	return s.Locate(area, id), nil
}

// Compile-time check that FileSystemBlobStore implements pv.BlobStore interface
var _ pv.BlobStore = (*FileSystemBlobStore)(nil)
