package thumbnail

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"pinvault/internal/pv"
)

// Renderer turns decrypted item content into a full-size image.
type Renderer interface {
	Render(ctx context.Context, item *pv.Item, content []byte) (image.Image, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, item *pv.Item, content []byte) (image.Image, error)

func (f RendererFunc) Render(ctx context.Context, item *pv.Item, content []byte) (image.Image, error) {
	return f(ctx, item, content)
}

// DefaultRenderers returns the built-in renderer per kind. Video and document
// previews need external tools; an empty path leaves them unavailable.
func DefaultRenderers(ffmpegPath, pdfToPPMPath string, size int) map[pv.Kind]Renderer {
	return map[pv.Kind]Renderer{
		pv.KindImage:    ImageRenderer{},
		pv.KindAudio:    AudioRenderer{},
		pv.KindVideo:    NewVideoRenderer(ffmpegPath),
		pv.KindDocument: NewDocumentRenderer(pdfToPPMPath, size),
	}
}

// fit scales img down to fit in a size x size box, keeping its aspect ratio.
// Images already inside the box are returned unchanged.
func fit(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= size && h <= size {
		return img
	}

	var dw, dh int
	if w >= h {
		dw = size
		dh = max(1, h*size/w)
	} else {
		dh = size
		dw = max(1, w*size/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
