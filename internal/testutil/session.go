package testutil

import (
	"testing"

	"pinvault/internal/blobstore"
	"pinvault/internal/database"
	"pinvault/internal/encryption"
	"pinvault/internal/indexstore"
	"pinvault/internal/pv"
)

// TestVault is an unlocked in-memory vault with handles on every
// collaborator so tests can inspect or sabotage them.
type TestVault struct {
	Session *pv.Session
	Store   *blobstore.MemoryBlobStore
	Blobs   *pv.Blobs
	Index   *indexstore.MemoryIndexStore
	DB      *database.Databases
	Clock   *StubClock
	IDs     *StubIDGenerator
}

// NewTestVault opens a session over fresh in-memory stores using the
// TestCodec, FixedClock and sequential ids. opts may adjust the deps before
// the session is opened.
func NewTestVault(t *testing.T, opts ...func(*pv.SessionDeps)) *TestVault {
	t.Helper()

	v := &TestVault{
		Store: NewTestBlobStore(t),
		Index: indexstore.NewMemoryIndexStore(encryption.NewTestCodec()),
		DB:    NewTestDatabases(t),
		Clock: FixedClock(),
		IDs:   NewStubIDGenerator(),
	}
	v.Blobs = NewTestBlobs(v.Store)

	deps := pv.SessionDeps{
		Index:   v.Index,
		Blobs:   v.Blobs,
		Thumbs:  v.DB.Thumbs,
		Meta:    v.DB.Meta,
		Locator: pv.ExifLocator{},
		Sealer:  encryption.NewAgeSealerWithWorkFactor(10),
		Clock:   v.Clock,
		IDs:     v.IDs,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	s, err := pv.Open(TestKey(), deps)
	if err != nil {
		t.Fatalf("pv.Open() error = %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	v.Session = s
	return v
}
