package indexstore

import (
	"bytes"
	"sync"

	"pinvault/internal/pv"
)

// MemoryIndexStore keeps the encrypted document in memory. The index still
// goes through the codec, so key handling matches the file store.
type MemoryIndexStore struct {
	mu    sync.Mutex
	codec pv.Codec
	doc   []byte
	saves int
}

// NewMemoryIndexStore creates an empty in-memory store.
func NewMemoryIndexStore(codec pv.Codec) *MemoryIndexStore {
	return &MemoryIndexStore{codec: codec}
}

func (m *MemoryIndexStore) Load(key []byte) (*pv.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return pv.NewIndex(), nil
	}
	return decode(m.codec, key, m.doc)
}

func (m *MemoryIndexStore) Save(key []byte, index *pv.Index) error {
	var buf bytes.Buffer
	if err := encode(m.codec, key, index, &buf); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = buf.Bytes()
	m.saves++
	return nil
}

// Saves reports how many documents have been written.
func (m *MemoryIndexStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// SetDocument replaces the stored ciphertext, for corruption tests.
func (m *MemoryIndexStore) SetDocument(doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc
}

// Compile-time check that MemoryIndexStore implements pv.IndexStore interface
var _ pv.IndexStore = (*MemoryIndexStore)(nil)
