package testutil

import (
	"bytes"
	"sync"
	"testing"

	"pinvault/internal/blobstore"
	"pinvault/internal/encryption"
	"pinvault/internal/pv"
)

// TestPIN is the PIN behind TestKey.
const TestPIN = "1234"

var testKey = sync.OnceValue(func() []byte {
	return encryption.DeriveKey([]byte(TestPIN))
})

// TestKey returns a fresh copy of the key derived from TestPIN.
func TestKey() []byte {
	return bytes.Clone(testKey())
}

// NewTestBlobStore creates a new in-memory blob store.
func NewTestBlobStore(t *testing.T) *blobstore.MemoryBlobStore {
	t.Helper()
	s, err := blobstore.NewMemoryBlobStore()
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	return s
}

// NewTestBlobs binds store to TestKey through the non-encrypting TestCodec.
func NewTestBlobs(store pv.BlobStore) *pv.Blobs {
	return pv.NewBlobs(store, encryption.NewTestCodec(), TestKey())
}
