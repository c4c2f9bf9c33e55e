package blobstore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pinvault/internal/pv"
)

func TestNewFileSystemBlobStore(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")

		if _, err := NewFileSystemBlobStore(root); err != nil {
			t.Fatalf("NewFileSystemBlobStore() error = %v", err)
		}

		for _, dir := range []string{"blobs", "thumbs"} {
			info, err := os.Stat(filepath.Join(root, dir))
			if err != nil {
				t.Errorf("%s directory not created: %v", dir, err)
				continue
			}
			if info.Mode().Perm() != 0700 {
				t.Errorf("%s mode = %o, want 0700", dir, info.Mode().Perm())
			}
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemBlobStore(t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemBlobStore() error = %v", err)
		}
	})
}

func TestFileSystemBlobStore_Layout(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemBlobStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemBlobStore() error = %v", err)
	}

	if err := s.Put(pv.AreaThumbs, "item-1", strings.NewReader("jpeg")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	want := filepath.Join(root, "thumbs", "item-1")
	if got := s.Locate(pv.AreaThumbs, "item-1"); got != want {
		t.Errorf("Locate() = %q, want %q", got, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("failed to read stored file: %v", err)
	}
	if string(data) != "jpeg" {
		t.Errorf("content = %q, want %q", data, "jpeg")
	}
}

func TestFileSystemBlobStore_AtomicWrite(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileSystemBlobStore(root)
	if err != nil {
		t.Fatalf("NewFileSystemBlobStore() error = %v", err)
	}

	if err := s.Put(pv.AreaBlobs, "item-1", strings.NewReader("version 1")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	t.Run("no temp files left after success", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(root, "blobs"))
		if err != nil {
			t.Fatalf("failed to read blobs dir: %v", err)
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".tmp-") {
				t.Errorf("temp file left behind: %s", entry.Name())
			}
		}
	})

	t.Run("failed write keeps previous content", func(t *testing.T) {
		failing := io.MultiReader(strings.NewReader("partial"), errReader{})
		if err := s.Put(pv.AreaBlobs, "item-1", failing); err == nil {
			t.Fatal("Put() expected error from failing reader")
		}

		data, err := os.ReadFile(filepath.Join(root, "blobs", "item-1"))
		if err != nil {
			t.Fatalf("failed to read blob: %v", err)
		}
		if string(data) != "version 1" {
			t.Errorf("content = %q, want %q", data, "version 1")
		}

		entries, err := os.ReadDir(filepath.Join(root, "blobs"))
		if err != nil {
			t.Fatalf("failed to read blobs dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("blobs dir has %d entries, want 1", len(entries))
		}
	})
}

func TestFileSystemBlobStore_ValidateSetup(t *testing.T) {
	t.Run("valid setup", func(t *testing.T) {
		s, err := NewFileSystemBlobStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemBlobStore() error = %v", err)
		}
		if err := s.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("missing root directory", func(t *testing.T) {
		s := &FileSystemBlobStore{root: "/nonexistent/path"}
		if err := s.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})

	t.Run("missing area directory", func(t *testing.T) {
		root := t.TempDir()
		s, err := NewFileSystemBlobStore(root)
		if err != nil {
			t.Fatalf("NewFileSystemBlobStore() error = %v", err)
		}
		if err := os.Remove(filepath.Join(root, "thumbs")); err != nil {
			t.Fatalf("failed to remove thumbs dir: %v", err)
		}
		if err := s.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for missing thumbs dir")
		}
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}
