package engine

import (
	"image"
	"log/slog"
	"sync"
)

// Decoder turns a background data URL into a bitmap.
type Decoder func(dataURL string) (image.Image, error)

// ImageCache decodes the background image off the caller's goroutine and
// keeps the most recent result. Only the decode of the currently wanted data
// URL may land; a result for a URL that has since been replaced is dropped.
type ImageCache struct {
	decode  Decoder
	onReady func()

	mu      sync.Mutex
	wanted  string
	loaded  string
	img     image.Image
	pending sync.WaitGroup
}

// NewImageCache creates a cache. onReady, if set, runs on the decoding
// goroutine after a fresh image is stored; it should only schedule a redraw.
func NewImageCache(decode Decoder, onReady func()) *ImageCache {
	return &ImageCache{decode: decode, onReady: onReady}
}

// Request makes dataURL the wanted image and starts decoding it if it is
// not already loaded or in flight. An empty URL clears the image.
func (c *ImageCache) Request(dataURL string) {
	c.mu.Lock()
	if dataURL == c.wanted {
		c.mu.Unlock()
		return
	}
	c.wanted = dataURL
	if dataURL == "" || c.decode == nil {
		c.img, c.loaded = nil, ""
		c.mu.Unlock()
		return
	}
	c.pending.Add(1)
	c.mu.Unlock()

	go c.run(dataURL)
}

func (c *ImageCache) run(dataURL string) {
	defer c.pending.Done()

	img, err := c.decode(dataURL)

	c.mu.Lock()
	if c.wanted != dataURL {
		c.mu.Unlock()
		slog.Debug("discarding stale background decode")
		return
	}
	if err != nil {
		c.img, c.loaded = nil, ""
		c.mu.Unlock()
		slog.Warn("background image decode failed", "error", err)
		return
	}
	c.img, c.loaded = img, dataURL
	c.mu.Unlock()

	if c.onReady != nil {
		c.onReady()
	}
}

// Get returns the decoded image for dataURL, if it is ready.
func (c *ImageCache) Get(dataURL string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dataURL == "" || c.loaded != dataURL || c.img == nil {
		return nil, false
	}
	return c.img, true
}

// Wait blocks until every decode started so far has finished.
func (c *ImageCache) Wait() {
	c.pending.Wait()
}
