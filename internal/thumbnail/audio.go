package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/dhowden/tag"

	"pinvault/internal/pv"
)

// ErrNoArtwork is returned for audio files without embedded cover art.
var ErrNoArtwork = errors.New("no embedded artwork")

// AudioRenderer uses the cover art embedded in ID3, MP4 or FLAC tags.
type AudioRenderer struct{}

func (AudioRenderer) Render(_ context.Context, item *pv.Item, content []byte) (image.Image, error) {
	m, err := tag.ReadFrom(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("reading tags of %s: %w", item.Name, err)
	}
	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", item.Name, ErrNoArtwork)
	}

	img, err := decodeBounded(pic.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding artwork of %s: %w", item.Name, err)
	}
	return img, nil
}
