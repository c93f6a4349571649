package wsi

import "github.com/pathview/wsi/cache"

// Option configures a Slide during creation.
// Use functional options to customize Slide behavior.
//
// Example:
//
//	// Private cache with default budget
//	slide, err := wsi.NewSlide(backend, levels)
//
//	// Process-wide shared cache (dependency injection)
//	shared := cache.New(128 << 20)
//	a, err := wsi.NewSlide(backendA, levelsA, wsi.WithCache(shared))
//	b, err := wsi.NewSlide(backendB, levelsB, wsi.WithCache(shared))
type Option func(*slideOptions)

// slideOptions holds optional configuration for Slide creation.
type slideOptions struct {
	cache         *cache.Cache
	cacheCapacity int64
	opener        Opener
	background    string
}

// defaultOptions returns the default slide options.
func defaultOptions() slideOptions {
	return slideOptions{
		cache:         nil, // a private cache is created if nil
		cacheCapacity: cache.DefaultCapacity,
		opener:        DefaultOpener,
	}
}

// WithCache shares an existing tile cache with the slide. Multiple slides
// may share one cache; entries are keyed per slide so tiles never collide.
func WithCache(c *cache.Cache) Option {
	return func(o *slideOptions) {
		o.cache = c
	}
}

// WithCacheCapacity sets the byte budget of the slide's private cache.
// Ignored when WithCache supplies a shared cache.
func WithCacheCapacity(bytes int64) Option {
	return func(o *slideOptions) {
		o.cacheCapacity = bytes
	}
}

// WithOpener substitutes the file-open primitive used by the backend.
// Intended for tests and for callers that virtualize file access.
func WithOpener(op Opener) Option {
	return func(o *slideOptions) {
		if op != nil {
			o.opener = op
		}
	}
}

// WithBackground overrides the background color painted behind regions,
// as a hex string such as "#FFFFFF". Backends normally set this from slide
// metadata during construction.
func WithBackground(hex string) Option {
	return func(o *slideOptions) {
		o.background = hex
	}
}
