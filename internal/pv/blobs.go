package pv

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// Blobs combines a BlobStore, a Codec and the session key into the
// put/get/delete operations on encrypted item content.
//
// Writers on the same id are serialized; different ids proceed in parallel.
type Blobs struct {
	store BlobStore
	codec Codec
	key   []byte

	mu    sync.Mutex
	locks map[string]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewBlobs binds store and codec to key.
func NewBlobs(store BlobStore, codec Codec, key []byte) *Blobs {
	return &Blobs{
		store: store,
		codec: codec,
		key:   key,
		locks: make(map[string]*idLock),
	}
}

// Store returns the underlying BlobStore.
func (b *Blobs) Store() BlobStore { return b.store }

// Put encrypts plaintext under id, embedding name in the header. It returns
// the plaintext size and its hex SHA-256, both computed in the same pass.
func (b *Blobs) Put(id string, plaintext io.Reader, name string) (int64, string, error) {
	unlock := b.lock(id)
	defer unlock()

	h := sha256.New()
	counter := &countingWriter{}
	src := io.TeeReader(plaintext, io.MultiWriter(h, counter))

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(b.codec.Encrypt(b.key, src, pw, name))
	}()

	if err := b.store.Put(AreaBlobs, id, pr); err != nil {
		pr.CloseWithError(err)
		return 0, "", &BlobError{Op: "put", ID: id, Err: err}
	}
	return counter.n, hex.EncodeToString(h.Sum(nil)), nil
}

// Get decrypts the content of id into w and returns the embedded name.
func (b *Blobs) Get(id string, w io.Writer) (string, error) {
	rc, err := b.store.Open(AreaBlobs, id)
	if err != nil {
		return "", &BlobError{Op: "get", ID: id, Err: err}
	}
	defer rc.Close()

	name, err := b.codec.Decrypt(b.key, rc, w)
	if err != nil {
		return "", &BlobError{Op: "get", ID: id, Err: err}
	}
	return name, nil
}

// ReadAll decrypts the content of id into memory, failing if the plaintext
// exceeds limit bytes. A limit of zero means unbounded.
func (b *Blobs) ReadAll(id string, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	var w io.Writer = &buf
	if limit > 0 {
		w = &limitedWriter{w: &buf, remaining: limit}
	}
	if _, err := b.Get(id, w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Name returns the display name embedded in the header of id.
func (b *Blobs) Name(id string) (string, error) {
	rc, err := b.store.Open(AreaBlobs, id)
	if err != nil {
		return "", &BlobError{Op: "metadata", ID: id, Err: err}
	}
	defer rc.Close()

	name, err := b.codec.ReadMetadata(rc)
	if err != nil {
		return "", &BlobError{Op: "metadata", ID: id, Err: err}
	}
	return name, nil
}

// Delete removes the content and thumbnail of id. Missing content is not an error.
func (b *Blobs) Delete(id string) error {
	unlock := b.lock(id)
	defer unlock()

	if err := b.store.Delete(AreaBlobs, id); err != nil {
		return &BlobError{Op: "delete", ID: id, Err: err}
	}
	if err := b.store.Delete(AreaThumbs, id); err != nil {
		return &BlobError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

func (b *Blobs) lock(id string) func() {
	b.mu.Lock()
	l, ok := b.locks[id]
	if !ok {
		l = &idLock{}
		b.locks[id] = l
	}
	l.refs++
	b.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, id)
		}
		b.mu.Unlock()
	}
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

type limitedWriter struct {
	w         io.Writer
	remaining int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.remaining {
		return 0, fmt.Errorf("content exceeds %d byte limit", l.remaining)
	}
	l.remaining -= int64(len(p))
	return l.w.Write(p)
}
