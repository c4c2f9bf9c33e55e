package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/sync/errgroup"

	"pinvault/internal/config"
	"pinvault/internal/pv"
)

// ErrInvalidated is reported for a render whose item was invalidated (purged
// or given new content) while it was in flight. Nothing is stored for it.
var ErrInvalidated = errors.New("item invalidated during render")

// Options configures a Pipeline. Zero values fall back to the config defaults.
type Options struct {
	Workers        int
	Size           int
	Quality        int
	CacheEntries   int
	MaxSourceBytes int64

	// Renderers overrides the per-kind renderers. Kinds without a renderer
	// are skipped.
	Renderers map[pv.Kind]Renderer

	Logger pv.Logger
	Clock  pv.Clock
}

// OptionsFromConfig maps the thumbnail config section to Options.
func OptionsFromConfig(cfg config.ThumbnailConfig) Options {
	return Options{
		Workers:        cfg.Workers,
		Size:           cfg.Size,
		Quality:        cfg.Quality,
		CacheEntries:   cfg.CacheEntries,
		MaxSourceBytes: cfg.MaxSourceBytes,
		Renderers:      DefaultRenderers(cfg.FFmpegPath, cfg.PDFToPPMPath, cfg.Size),
	}
}

// Pipeline renders previews with a bounded pool of workers and records them
// in the thumbnail cache. At most Workers items are decrypted and decoded
// at once.
type Pipeline struct {
	blobs     *pv.Blobs
	cache     pv.ThumbnailCache
	images    *ImageCache
	renderers map[pv.Kind]Renderer
	opts      Options
	logger    pv.Logger
	clock     pv.Clock

	mu     sync.Mutex
	states map[string]State
	gens   map[string]uint64

	// commitMu orders storing a rendered preview against Invalidate.
	commitMu sync.Mutex
}

// NewPipeline creates a pipeline reading content through blobs.
func NewPipeline(blobs *pv.Blobs, cache pv.ThumbnailCache, opts Options) (*Pipeline, error) {
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultThumbnailWorkers
	}
	if opts.Size <= 0 {
		opts.Size = config.DefaultThumbnailSize
	}
	if opts.Quality <= 0 {
		opts.Quality = config.DefaultThumbnailQuality
	}
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = config.DefaultMaxSourceBytes
	}
	if opts.Renderers == nil {
		opts.Renderers = DefaultRenderers("", "", opts.Size)
	}
	if opts.Logger == nil {
		opts.Logger = pv.NewNopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = pv.RealClock{}
	}

	images, err := NewImageCache(opts.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}

	return &Pipeline{
		blobs:     blobs,
		cache:     cache,
		images:    images,
		renderers: opts.Renderers,
		opts:      opts,
		logger:    opts.Logger.With("component", "thumbnails"),
		clock:     opts.Clock,
		states:    make(map[string]State),
		gens:      make(map[string]uint64),
	}, nil
}

// State returns the lifecycle state of id as last observed by this pipeline.
func (p *Pipeline) State(id string) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[id]
}

// Sync renders every item that lacks a valid cached preview. Items are
// handed to the workers in order; submission blocks while all workers are
// busy. Cancelling ctx stops submission, and finished items stay cached.
func (p *Pipeline) Sync(ctx context.Context, items []*pv.Item) <-chan pv.Progress {
	out := make(chan pv.Progress)

	go func() {
		defer close(out)

		pending := p.pending(items)
		total := len(pending)
		p.logger.Info("thumbnail pass started", "pending", total, "workers", p.opts.Workers)

		var g errgroup.Group
		g.SetLimit(p.opts.Workers)

		var sendMu sync.Mutex
		processed := 0
		failed := 0

		for _, it := range pending {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				err := p.generate(ctx, it)

				sendMu.Lock()
				defer sendMu.Unlock()
				processed++
				if err != nil {
					failed++
				}
				select {
				case out <- pv.Progress{Processed: processed, Total: total, ItemID: it.ID, Err: err}:
				case <-ctx.Done():
				}
				return nil
			})
		}
		g.Wait()

		if ctx.Err() != nil {
			p.logger.Warn("thumbnail pass cancelled", "processed", processed, "pending", total)
			return
		}
		p.logger.Info("thumbnail pass finished", "processed", processed, "failed", failed)
	}()

	return out
}

// Thumbnail returns the decoded preview of item, loading it from the store or
// rendering it when no valid preview exists.
func (p *Pipeline) Thumbnail(ctx context.Context, item *pv.Item) (image.Image, error) {
	if _, ok := p.renderers[item.Kind]; !ok {
		return nil, fmt.Errorf("no preview for %s items: %w", item.Kind, pv.ErrRendererUnavailable)
	}

	gen := p.generation(item.ID)
	valid, err := p.valid(item.ID)
	if err != nil {
		return nil, err
	}
	if valid {
		if img, ok := p.images.Get(item.ID); ok {
			return img, nil
		}
		img, err := p.load(item.ID)
		if err == nil {
			p.remember(item.ID, gen, img)
			return img, nil
		}
		p.logger.Warn("stored thumbnail unreadable, regenerating", "id", item.ID, "error", err)
	}

	if err := p.generate(ctx, item); err != nil {
		return nil, err
	}
	img, ok := p.images.Get(item.ID)
	if !ok {
		return p.load(item.ID)
	}
	return img, nil
}

// Invalidate drops the decoded, stored and recorded previews of ids. Renders
// of these ids still in flight are discarded when they finish.
func (p *Pipeline) Invalidate(ids ...string) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	p.images.Remove(ids...)
	p.mu.Lock()
	for _, id := range ids {
		delete(p.states, id)
		p.gens[id]++
	}
	p.mu.Unlock()

	store := p.blobs.Store()
	for _, id := range ids {
		if err := store.Delete(pv.AreaThumbs, id); err != nil {
			p.logger.Warn("dropping stored thumbnail", "id", id, "error", err)
		}
	}
	if err := p.cache.Delete(ids...); err != nil {
		p.logger.Warn("dropping thumbnail cache entries", "error", err)
	}
}

// pending filters items down to those with a renderer and no valid preview.
func (p *Pipeline) pending(items []*pv.Item) []*pv.Item {
	var out []*pv.Item
	for _, it := range items {
		if it.IsFolder() || it.Deleted {
			continue
		}
		if _, ok := p.renderers[it.Kind]; !ok {
			continue
		}
		valid, err := p.valid(it.ID)
		if err != nil {
			p.logger.Warn("thumbnail cache lookup failed", "id", it.ID, "error", err)
		}
		if valid {
			p.setState(it.ID, StateCached)
			continue
		}
		out = append(out, it)
	}
	return out
}

// valid reports whether id has a cache entry whose preview file still exists.
func (p *Pipeline) valid(id string) (bool, error) {
	entry, err := p.cache.Get(id)
	if err != nil {
		return false, fmt.Errorf("looking up thumbnail of %s: %w", id, err)
	}
	if entry == nil {
		return false, nil
	}
	ok, err := p.blobs.Store().Exists(pv.AreaThumbs, id)
	if err != nil {
		return false, fmt.Errorf("checking thumbnail of %s: %w", id, err)
	}
	return ok, nil
}

// generate renders, stores and records the preview of item.
func (p *Pipeline) generate(ctx context.Context, item *pv.Item) error {
	gen := p.generation(item.ID)
	p.setState(item.ID, StateGenerating)

	img, err := p.render(ctx, item)
	if err != nil {
		p.setState(item.ID, StateFailed)
		p.logger.Warn("thumbnail failed", "id", item.ID, "kind", item.Kind, "error", err)
		return err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.opts.Quality}); err != nil {
		p.setState(item.ID, StateFailed)
		return fmt.Errorf("encoding thumbnail of %s: %w", item.ID, err)
	}

	if err := p.commit(item.ID, gen, img, &buf); err != nil {
		if !errors.Is(err, ErrInvalidated) {
			p.setState(item.ID, StateFailed)
		}
		return err
	}
	return nil
}

// commit stores a rendered preview unless the item was invalidated after
// rendering began at generation gen.
func (p *Pipeline) commit(id string, gen uint64, img image.Image, encoded *bytes.Buffer) error {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	if p.generation(id) != gen {
		p.logger.Debug("discarding thumbnail of invalidated item", "id", id)
		return fmt.Errorf("thumbnail of %s: %w", id, ErrInvalidated)
	}

	store := p.blobs.Store()
	if err := store.Put(pv.AreaThumbs, id, encoded); err != nil {
		return fmt.Errorf("storing thumbnail of %s: %w", id, err)
	}
	entry := pv.ThumbnailEntry{
		ID:          id,
		Location:    store.Locate(pv.AreaThumbs, id),
		GeneratedAt: p.clock.Now(),
	}
	if err := p.cache.Put(entry); err != nil {
		return fmt.Errorf("recording thumbnail of %s: %w", id, err)
	}

	p.images.Add(id, img)
	p.setState(id, StateCached)
	return nil
}

func (p *Pipeline) render(ctx context.Context, item *pv.Item) (image.Image, error) {
	r, ok := p.renderers[item.Kind]
	if !ok {
		return nil, fmt.Errorf("no preview for %s items: %w", item.Kind, pv.ErrRendererUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := p.blobs.ReadAll(item.ID, p.opts.MaxSourceBytes)
	if err != nil {
		return nil, err
	}

	img, err := r.Render(ctx, item, content)
	if err != nil {
		return nil, err
	}
	return fit(img, p.opts.Size), nil
}

func (p *Pipeline) load(id string) (image.Image, error) {
	rc, err := p.blobs.Store().Open(pv.AreaThumbs, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	img, err := jpeg.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decoding thumbnail of %s: %w", id, err)
	}
	return img, nil
}

// remember caches a decoded preview loaded at generation gen.
func (p *Pipeline) remember(id string, gen uint64, img image.Image) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	if p.generation(id) == gen {
		p.images.Add(id, img)
	}
}

func (p *Pipeline) generation(id string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gens[id]
}

func (p *Pipeline) setState(id string, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[id] = s
}

// Compile-time check that Pipeline implements pv.Thumbnailer interface
var _ pv.Thumbnailer = (*Pipeline)(nil)
