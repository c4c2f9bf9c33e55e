package pv

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// headSize is how much leading plaintext is kept during import for MIME
// sniffing and EXIF extraction.
const headSize = 256 << 10

// ImportOutcome tells what ImportContent did with the incoming content.
type ImportOutcome int

const (
	// ImportAdded stored the content under its original name.
	ImportAdded ImportOutcome = iota
	// ImportRenamed stored the content under a suffixed name because a
	// different file with the same name already exists in the folder.
	ImportRenamed
	// ImportSkipped dropped the content because a file with the same name
	// and size already exists in the folder.
	ImportSkipped
)

func (o ImportOutcome) String() string {
	switch o {
	case ImportAdded:
		return "added"
	case ImportRenamed:
		return "renamed"
	case ImportSkipped:
		return "skipped"
	}
	return "unknown"
}

// ImportResult is the item created by an import, or the existing item that
// caused it to be skipped.
type ImportResult struct {
	Item    *Item
	Outcome ImportOutcome
}

// ImportContent encrypts src into a new blob and records it as a child of
// parentID. Encryption streams and runs outside the session lock, so
// concurrent imports proceed in parallel; only the index update is serialized.
func (s *Session) ImportContent(ctx context.Context, src io.Reader, name, parentID string) (*ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(name) > MaxNameLen {
		return nil, fmt.Errorf("name is %d bytes, limit is %d: %w", len(name), MaxNameLen, ErrInvalidName)
	}

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	err := s.index.checkParent(parentID)
	id := s.ids.New()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("importing %q: %w", name, err)
	}

	head := &headBuffer{limit: headSize}
	size, hash, err := s.blobs.Put(id, io.TeeReader(src, head), name)
	if err != nil {
		return nil, fmt.Errorf("importing %q: %w", name, err)
	}

	kind := DetectKind(name, mimetype.Detect(head.buf).String())
	item := &Item{
		ID:          id,
		Name:        name,
		Kind:        kind,
		ParentID:    parentID,
		ModifiedAt:  s.clock.Now(),
		Size:        size,
		ContentHash: hash,
	}

	s.mu.Lock()
	result, err := s.recordImport(item)
	s.mu.Unlock()
	if err != nil || result.Outcome == ImportSkipped {
		if derr := s.blobs.Delete(id); derr != nil {
			s.logger.Warn("removing unused blob", "id", id, "error", derr)
		}
		if err != nil {
			return nil, fmt.Errorf("importing %q: %w", name, err)
		}
		s.logger.Info("import skipped, identical file exists", "name", name, "existing", result.Item.ID)
		return result, nil
	}

	if kind == KindImage && s.locator != nil {
		if lat, lon, ok := s.locator.Extract(head.buf); ok {
			if err := s.meta.PutLocation(Location{ID: id, Latitude: lat, Longitude: lon}); err != nil {
				s.logger.Warn("saving location", "id", id, "error", err)
			}
		}
	}

	s.logger.Info("item imported", "id", id, "name", result.Item.Name, "kind", kind, "size", size)
	return result, nil
}

// recordImport applies the name-conflict policy and persists the new item.
// The caller must hold s.mu.
func (s *Session) recordImport(item *Item) (*ImportResult, error) {
	siblings := make(map[string]*Item)
	for _, sib := range s.index.Children(item.ParentID) {
		if !sib.Deleted && !sib.IsFolder() {
			siblings[sib.Name] = sib
		}
	}

	outcome := ImportAdded
	if existing, ok := siblings[item.Name]; ok {
		if existing.Size == item.Size {
			return &ImportResult{Item: existing, Outcome: ImportSkipped}, nil
		}
		item.Name = uniqueName(item.Name, func(n string) bool { _, taken := siblings[n]; return taken })
		outcome = ImportRenamed
	}

	if err := s.mutate(func(x *Index) error { return x.AddItem(item) }); err != nil {
		return nil, err
	}
	return &ImportResult{Item: item.clone(), Outcome: outcome}, nil
}

// ReplaceContent re-encrypts new content under an existing item id and
// refreshes its size, hash and modification time. The old preview is dropped.
//
// The blob is written before the index is saved. If the save fails, the blob
// already holds the new content while the index keeps the previous size and
// hash, and the returned error says so. An item purged while the content
// streamed in is reported as ErrNotFound and the blob written for it removed.
func (s *Session) ReplaceContent(ctx context.Context, id string, src io.Reader) (*Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if current.IsFolder() {
		return nil, fmt.Errorf("item %s is a folder", id)
	}

	size, hash, err := s.blobs.Put(id, src, current.Name)
	if err != nil {
		return nil, fmt.Errorf("replacing %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := s.index.Get(id); err != nil {
		if derr := s.blobs.Delete(id); derr != nil {
			s.logger.Warn("leftover blob after purge", "id", id, "error", derr)
		}
		return nil, fmt.Errorf("replacing %s: %w", id, err)
	}

	err = s.mutate(func(x *Index) error { return x.UpdateContent(id, size, hash, s.clock.Now()) })
	if err != nil {
		s.logger.Error("content replaced but index not saved", "id", id, "error", err)
		return nil, fmt.Errorf("replacing %s: content written, index not updated: %w", id, err)
	}
	if err := s.thumbs.Delete(id); err != nil {
		s.logger.Warn("dropping stale thumbnail entry", "id", id, "error", err)
	}
	if s.thumbnailer != nil {
		s.thumbnailer.Invalidate(id)
	}
	return s.index.Get(id)
}

// uniqueName derives "name(1).ext", "name(2).ext", ... (or "name_1",
// "name_2", ... without an extension) until taken reports false.
func uniqueName(name string, taken func(string) bool) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	for n := 1; ; n++ {
		var candidate string
		if ext != "" {
			candidate = base + "(" + strconv.Itoa(n) + ")" + ext
		} else {
			candidate = base + "_" + strconv.Itoa(n)
		}
		if !taken(candidate) {
			return candidate
		}
	}
}

// headBuffer keeps the first limit bytes written to it and discards the rest.
type headBuffer struct {
	buf   []byte
	limit int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		h.buf = append(h.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}
