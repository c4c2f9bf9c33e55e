package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"pinvault/internal/pv"
)

// MaxPixels bounds the width times height of any image the renderers will
// decode. Headers are checked before pixel data is allocated.
const MaxPixels = 64 << 20

// ErrImageTooLarge is returned for images whose header declares more than
// MaxPixels pixels.
var ErrImageTooLarge = errors.New("image dimensions exceed limit")

// ImageRenderer decodes still images. JPEG, PNG, GIF, BMP and WebP are
// supported; other formats fail per item.
type ImageRenderer struct{}

func (ImageRenderer) Render(_ context.Context, item *pv.Item, content []byte) (image.Image, error) {
	img, err := decodeBounded(content)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", item.Name, err)
	}
	return img, nil
}

func decodeBounded(data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrImageTooLarge)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
