package pv

import (
	"fmt"
)

// CreateFolder adds an empty folder under parentID ("" for root).
func (s *Session) CreateFolder(name, parentID string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created *Item
	err := s.mutate(func(x *Index) error {
		it, err := x.CreateFolder(s.ids.New(), name, parentID, s.clock.Now())
		created = it
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating folder %q: %w", name, err)
	}

	s.logger.Info("folder created", "id", created.ID, "name", name, "parent", parentID)
	return created, nil
}

// Rename changes an item's display name. Stored bytes are not rewritten;
// the name embedded in the blob header keeps the import-time name.
func (s *Session) Rename(id, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutate(func(x *Index) error { return x.Rename(id, newName) }); err != nil {
		return fmt.Errorf("renaming %s: %w", id, err)
	}
	s.logger.Info("item renamed", "id", id, "name", newName)
	return nil
}

// Move reparents ids under newParentID ("" for root).
func (s *Session) Move(ids []string, newParentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutate(func(x *Index) error { return x.Move(ids, newParentID) }); err != nil {
		return fmt.Errorf("moving %d items: %w", len(ids), err)
	}
	s.logger.Info("items moved", "count", len(ids), "parent", newParentID)
	return nil
}

// SoftDelete moves ids and their descendants to the trash.
func (s *Session) SoftDelete(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if err := s.mutate(func(x *Index) error { return x.SoftDelete(ids, now) }); err != nil {
		return fmt.Errorf("deleting %d items: %w", len(ids), err)
	}
	s.logger.Info("items trashed", "count", len(ids))
	return nil
}

// Restore brings ids and their descendants back from the trash.
func (s *Session) Restore(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutate(func(x *Index) error { return x.Restore(ids) }); err != nil {
		return fmt.Errorf("restoring %d items: %w", len(ids), err)
	}
	s.logger.Info("items restored", "count", len(ids))
	return nil
}

// SetTags replaces the tags of an item.
func (s *Session) SetTags(id string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutate(func(x *Index) error { return x.SetTags(id, tags) }); err != nil {
		return fmt.Errorf("tagging %s: %w", id, err)
	}
	return nil
}

// Purge permanently removes ids and all their descendants: index entries,
// encrypted content, thumbnails, cache entries and locations. The index is
// persisted first; leftover blobs from a failed cleanup are unreachable and
// are reported but do not fail the call.
func (s *Session) Purge(ids []string) ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(ids)
}

// EmptyTrash purges every soft-deleted item.
func (s *Session) EmptyTrash() ([]*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var ids []string
	for _, it := range s.index.Trash() {
		ids = append(ids, it.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.purgeLocked(ids)
}

func (s *Session) purgeLocked(ids []string) ([]*Item, error) {
	var removed []*Item
	err := s.mutate(func(x *Index) error {
		var err error
		removed, err = x.Purge(ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("purging %d items: %w", len(ids), err)
	}

	removedIDs := make([]string, 0, len(removed))
	for _, it := range removed {
		removedIDs = append(removedIDs, it.ID)
		if err := s.blobs.Delete(it.ID); err != nil {
			s.logger.Warn("leftover blob after purge", "id", it.ID, "error", err)
		}
	}
	if err := s.thumbs.Delete(removedIDs...); err != nil {
		s.logger.Warn("dropping thumbnail cache entries", "error", err)
	}
	if err := s.meta.DeleteLocations(removedIDs...); err != nil {
		s.logger.Warn("dropping locations", "error", err)
	}
	if s.thumbnailer != nil {
		s.thumbnailer.Invalidate(removedIDs...)
	}

	s.logger.Info("items purged", "count", len(removed))
	return removed, nil
}
