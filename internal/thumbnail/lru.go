package thumbnail

import (
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ImageCache holds recently decoded previews in memory. A cache created
// with no capacity stores nothing.
type ImageCache struct {
	cache *lru.Cache[string, image.Image]
}

// NewImageCache creates a cache bounded to entries images.
func NewImageCache(entries int) (*ImageCache, error) {
	if entries <= 0 {
		return &ImageCache{}, nil
	}
	c, err := lru.New[string, image.Image](entries)
	if err != nil {
		return nil, err
	}
	return &ImageCache{cache: c}, nil
}

func (c *ImageCache) Get(id string) (image.Image, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(id)
}

func (c *ImageCache) Add(id string, img image.Image) {
	if c.cache == nil {
		return
	}
	c.cache.Add(id, img)
}

func (c *ImageCache) Remove(ids ...string) {
	if c.cache == nil {
		return
	}
	for _, id := range ids {
		c.cache.Remove(id)
	}
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
