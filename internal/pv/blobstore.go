package pv

import "io"

// Area selects one of the id-addressed namespaces of a BlobStore.
type Area string

const (
	// AreaBlobs holds encrypted item content.
	AreaBlobs Area = "blobs"
	// AreaThumbs holds rendered thumbnails.
	AreaThumbs Area = "thumbs"
)

// BlobStore places opaque byte streams under <area>/<id>. Content is
// addressed by item id, never by folder path, so renames and moves never
// touch stored bytes. All operations stream through io.Reader/io.ReadCloser.
type BlobStore interface {
	// Put stores the bytes read from r, atomically replacing any previous
	// content under the same id.
	Put(area Area, id string, r io.Reader) error

	// Open returns a reader for stored content. Returns an error wrapping
	// ErrNotFound if nothing is stored under id.
	Open(area Area, id string) (io.ReadCloser, error)

	// Delete removes stored content. Deleting a missing id is not an error.
	Delete(area Area, id string) error

	// Exists reports whether content is stored under id.
	Exists(area Area, id string) (bool, error)

	// Locate returns the location recorded in the thumbnail cache: a file
	// path, memory path or object key depending on the backend.
	Locate(area Area, id string) string

	// ValidateSetup verifies that the store is accessible and properly configured.
	ValidateSetup() error
}
