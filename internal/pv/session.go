package pv

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// SessionDeps carries the collaborators of a Session. Index, Blobs, Thumbs
// and Meta are required; the rest fall back to no-op or real defaults.
type SessionDeps struct {
	Index       IndexStore
	Blobs       *Blobs
	Thumbs      ThumbnailCache
	Meta        MetaStore
	Thumbnailer Thumbnailer
	Locator     LocationExtractor
	Sealer      Sealer
	Logger      Logger
	Clock       Clock
	IDs         IDGenerator
}

// Session is an unlocked vault. It owns the in-memory index and serializes
// every mutation: each one is applied to a copy of the index, persisted, and
// only then made visible. Reads see the last persisted state.
type Session struct {
	mu        sync.Mutex
	key       []byte
	index     *Index
	recovered error
	closed    bool

	store       IndexStore
	blobs       *Blobs
	thumbs      ThumbnailCache
	meta        MetaStore
	thumbnailer Thumbnailer
	locator     LocationExtractor
	sealer      Sealer
	logger      Logger
	clock       Clock
	ids         IDGenerator

	// chtimes is swapped in tests to make exported timestamps unsettable.
	chtimes func(name string, atime, mtime time.Time) error
}

// Open loads the index with key and returns a ready session. A corrupt index
// does not fail Open: the session starts empty and Recovered reports the cause.
func Open(key []byte, deps SessionDeps) (*Session, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	if deps.Index == nil || deps.Blobs == nil || deps.Thumbs == nil || deps.Meta == nil {
		return nil, fmt.Errorf("session requires index store, blobs, thumbnail cache and meta store")
	}

	s := &Session{
		key:         key,
		store:       deps.Index,
		blobs:       deps.Blobs,
		thumbs:      deps.Thumbs,
		meta:        deps.Meta,
		thumbnailer: deps.Thumbnailer,
		locator:     deps.Locator,
		sealer:      deps.Sealer,
		logger:      deps.Logger,
		clock:       deps.Clock,
		ids:         deps.IDs,
		chtimes:     os.Chtimes,
	}
	if s.logger == nil {
		s.logger = NewNopLogger()
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.ids == nil {
		s.ids = UUIDGenerator{}
	}

	index, err := s.store.Load(key)
	switch {
	case err == nil:
	case errors.Is(err, ErrCorruptIndex):
		s.logger.Warn("index unreadable, starting empty", "error", err)
		s.recovered = err
	default:
		return nil, fmt.Errorf("loading index: %w", err)
	}
	if index == nil {
		index = NewIndex()
	}
	s.index = index

	s.logger.Info("session opened", "items", index.Len())
	return s, nil
}

// Recovered returns the load error if the stored index was unreadable and the
// session started from an empty index, or nil otherwise. Callers use it to
// tell data loss apart from a genuinely empty vault.
func (s *Session) Recovered() error {
	return s.recovered
}

// Close ends the session and drops the key from memory.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	clear(s.key)
	s.logger.Info("session closed")
	return nil
}

// Get returns a copy of one item.
func (s *Session) Get(id string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.index.Get(id)
}

// snapshot returns a copy of the current index.
func (s *Session) snapshot() (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.index.Clone(), nil
}

// mutate applies fn to a copy of the index and persists it. The copy becomes
// the live index only after a successful save. The caller must hold s.mu.
func (s *Session) mutate(fn func(x *Index) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	next := s.index.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.Save(s.key, next); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	s.index = next
	return nil
}

func (s *Session) checkOpen() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}
