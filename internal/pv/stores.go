package pv

import (
	"context"
	"image"
	"time"
)

// IndexStore persists the encrypted index document.
type IndexStore interface {
	// Load returns the stored index. A missing document yields an empty index
	// and nil error. An unreadable document yields an empty index together
	// with an error wrapping ErrCorruptIndex.
	Load(key []byte) (*Index, error)

	// Save replaces the stored document atomically. On failure the previously
	// saved document remains loadable.
	Save(key []byte, index *Index) error
}

// ThumbnailEntry records where the preview of an item lives.
type ThumbnailEntry struct {
	ID          string
	Location    string
	GeneratedAt time.Time
}

// ThumbnailCache is the persistent map from item id to rendered preview.
type ThumbnailCache interface {
	// Get returns the entry for id, or nil if there is none.
	Get(id string) (*ThumbnailEntry, error)
	Put(entry ThumbnailEntry) error
	Delete(ids ...string) error
	All() ([]ThumbnailEntry, error)
}

// Location is a geocoordinate captured from an item's embedded metadata.
type Location struct {
	ID        string
	Latitude  float64
	Longitude float64
}

// MetaStore persists per-item metadata extracted at import time.
type MetaStore interface {
	PutLocation(loc Location) error
	DeleteLocations(ids ...string) error
	Locations() ([]Location, error)
}

// LocationExtractor pulls a geocoordinate out of image content. It returns
// ok=false when the content carries none.
type LocationExtractor interface {
	Extract(data []byte) (lat, lon float64, ok bool)
}

// Progress is one event of a thumbnail pass. Processed increases by one per
// event and never exceeds Total. Err is set when the item failed to render.
type Progress struct {
	Processed int
	Total     int
	ItemID    string
	Err       error
}

// Thumbnailer materializes previews for index items.
type Thumbnailer interface {
	// Sync renders every item lacking a valid cache entry. Events arrive on
	// the returned channel, which is closed when the pass ends or ctx is
	// cancelled.
	Sync(ctx context.Context, items []*Item) <-chan Progress

	// Thumbnail returns the decoded preview for id, rendering it if needed.
	Thumbnail(ctx context.Context, item *Item) (image.Image, error)

	// Invalidate drops every cached and stored preview of ids. A render of
	// one of them already in flight must not store its result.
	Invalidate(ids ...string)
}
