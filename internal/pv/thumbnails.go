package pv

import (
	"context"
	"fmt"
	"image"
)

// SyncThumbnails starts a thumbnail pass over the live, non-folder items of
// the current index. Progress events arrive on the returned channel, which
// is closed when the pass ends. Cancel ctx to stop between items.
func (s *Session) SyncThumbnails(ctx context.Context) (<-chan Progress, error) {
	if s.thumbnailer == nil {
		return nil, fmt.Errorf("thumbnails are not configured")
	}
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	var items []*Item
	for _, it := range snap.Items() {
		if !it.Deleted && !it.IsFolder() {
			items = append(items, it)
		}
	}
	s.logger.Info("thumbnail sync started", "items", len(items))
	return s.thumbnailer.Sync(ctx, items), nil
}

// Thumbnail returns the decoded preview of id, rendering it on demand.
func (s *Session) Thumbnail(ctx context.Context, id string) (image.Image, error) {
	if s.thumbnailer == nil {
		return nil, fmt.Errorf("thumbnails are not configured")
	}
	it, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return s.thumbnailer.Thumbnail(ctx, it)
}

// PruneThumbnails drops cache entries and stored previews of ids that are no
// longer in the index. Returns the number of entries dropped.
func (s *Session) PruneThumbnails() (int, error) {
	snap, err := s.snapshot()
	if err != nil {
		return 0, err
	}
	entries, err := s.thumbs.All()
	if err != nil {
		return 0, fmt.Errorf("listing thumbnail cache: %w", err)
	}

	var stale []string
	for _, e := range entries {
		if _, err := snap.Get(e.ID); err != nil {
			stale = append(stale, e.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	for _, id := range stale {
		if err := s.blobs.Store().Delete(AreaThumbs, id); err != nil {
			return 0, fmt.Errorf("deleting thumbnail %s: %w", id, err)
		}
	}
	if err := s.thumbs.Delete(stale...); err != nil {
		return 0, fmt.Errorf("dropping thumbnail cache entries: %w", err)
	}
	if s.thumbnailer != nil {
		s.thumbnailer.Invalidate(stale...)
	}

	s.logger.Info("thumbnail cache pruned", "entries", len(stale))
	return len(stale), nil
}

// Locations returns the captured geocoordinates of live items.
func (s *Session) Locations() ([]Location, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	all, err := s.meta.Locations()
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}

	var out []Location
	for _, loc := range all {
		if it, err := snap.Get(loc.ID); err == nil && !it.Deleted {
			out = append(out, loc)
		}
	}
	return out, nil
}
