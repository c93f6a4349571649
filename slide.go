package wsi

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/pathview/wsi/cache"
)

// Slide is an open whole-slide image.
//
// A Slide owns its backend's private state and a handle to the tile cache,
// tracks the pyramid level count, and latches the first error any operation
// records. Construction is not thread-safe; once fully constructed and
// published, a Slide may be used from multiple goroutines concurrently
// without caller-side locking.
type Slide struct {
	backend    Backend
	tiles      *cache.Cache
	opener     Opener
	plane      uint64
	levelCount int
	background uint32

	// props is written only during backend construction.
	props map[string]string

	latched atomic.Pointer[latchedError]
	closed  atomic.Bool
}

// latchedError boxes the first error recorded on a slide.
type latchedError struct {
	err error
}

// NewSlide installs a backend into a new slide handle.
//
// The backend is typically constructed by a format package such as
// backend/raw; levelCount is the number of pyramid levels it serves.
// Without WithCache the slide gets a private cache sized by
// WithCacheCapacity (default cache.DefaultCapacity).
func NewSlide(backend Backend, levelCount int, opts ...Option) (*Slide, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	if levelCount < 1 {
		return nil, fmt.Errorf("%w: slide needs at least one level, got %d", ErrInvalidLevel, levelCount)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	tiles := o.cache
	if tiles == nil {
		tiles = cache.New(o.cacheCapacity)
	}

	s := &Slide{
		backend:    backend,
		tiles:      tiles,
		opener:     o.opener,
		plane:      cache.NextPlane(),
		levelCount: levelCount,
		background: 0xFFFFFF,
		props:      make(map[string]string),
	}

	if o.background != "" {
		if err := s.SetBackgroundColor(o.background); err != nil {
			return nil, err
		}
	}

	Logger().Debug("slide opened", "levels", levelCount, "plane", s.plane)
	return s, nil
}

// Close tears down the slide, invoking the backend's teardown exactly once
// and dropping the slide's tiles from the cache. Close must not be called
// concurrently with other operations on the same slide; subsequent Close
// calls are no-ops.
func (s *Slide) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.tiles.DropPlane(s.plane)
	return s.backend.Close()
}

// LevelCount returns the number of pyramid levels.
func (s *Slide) LevelCount() int {
	return s.levelCount
}

// Dimensions returns the pixel dimensions of level 0, or zeros once the
// slide is closed.
func (s *Slide) Dimensions() (w, h int64) {
	w, h, _ = s.LevelDimensions(0)
	return w, h
}

// LevelDimensions returns the pixel dimensions of a pyramid level.
func (s *Slide) LevelDimensions(level int) (w, h int64, err error) {
	if err := s.checkLevel(level); err != nil {
		return 0, 0, err
	}
	w, h = s.backend.Dimensions(level)
	return w, h, nil
}

// TileGeometry returns the native tile width and height of a level.
func (s *Slide) TileGeometry(level int) (tw, th int64, err error) {
	if err := s.checkLevel(level); err != nil {
		return 0, 0, err
	}
	tw, th = s.backend.TileGeometry(level)
	return tw, th, nil
}

// LevelDownsample returns the downsample factor of a level relative to
// level 0. Backends implementing Downsampler report their own ratios;
// otherwise the factor is 2^level.
func (s *Slide) LevelDownsample(level int) (float64, error) {
	if err := s.checkLevel(level); err != nil {
		return 0, err
	}
	if d, ok := s.backend.(Downsampler); ok {
		return d.Downsample(level), nil
	}
	return math.Pow(2, float64(level)), nil
}

// BestLevelForDownsample returns the level best suited for reading at the
// given downsample factor: the last level whose own factor does not exceed
// the request.
func (s *Slide) BestLevelForDownsample(downsample float64) int {
	for level := 1; level < s.levelCount; level++ {
		ds, err := s.LevelDownsample(level)
		if err != nil || downsample < ds {
			return level - 1
		}
	}
	return s.levelCount - 1
}

// ReadRegion renders the rectangle (x, y, w, h) at a pyramid level into a
// fresh surface. x and y are level 0 coordinates; w and h are level
// coordinates. Portions outside the pyramid stay at the background color;
// a rectangle entirely out of bounds yields a blank surface, not an error.
//
// I/O and decode failures are latched on the slide and leave a partially
// painted surface; check Err afterwards. ReadRegion is safe for concurrent
// use.
func (s *Slide) ReadRegion(level int, x, y int64, w, h int32) *Surface {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	dst := NewSurface(int(w), int(h))
	dst.Fill(s.background)

	if err := s.checkLevel(level); err != nil {
		s.latch(err)
		return dst
	}
	if w == 0 || h == 0 {
		return dst
	}

	if err := s.backend.PaintRegion(s, dst, level, x, y, w, h); err != nil {
		s.latch(err)
	}
	return dst
}

// Err returns the latched error, or nil if none has been recorded.
// The first error recorded on a slide persists across subsequent
// operations until ClearErr or Close.
func (s *Slide) Err() error {
	if l := s.latched.Load(); l != nil {
		return l.err
	}
	return nil
}

// ClearErr clears the latched error so later failures can be observed.
func (s *Slide) ClearErr() {
	s.latched.Store(nil)
}

// latch records err as the slide's latched error if none is set.
// First error wins; later errors are dropped.
func (s *Slide) latch(err error) {
	if err == nil {
		return
	}
	if s.latched.CompareAndSwap(nil, &latchedError{err: err}) {
		Logger().Warn("slide error latched", "err", err)
	}
}

// checkLevel guards the preconditions of the backend contract: no call may
// reach the backend after teardown or with an out-of-range level.
func (s *Slide) checkLevel(level int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if level < 0 || level >= s.levelCount {
		return fmt.Errorf("%w: level %d of %d", ErrInvalidLevel, level, s.levelCount)
	}
	return nil
}

// Cache returns the tile cache backing this slide. Backends use it
// together with Plane to key their tiles.
func (s *Slide) Cache() *cache.Cache {
	return s.tiles
}

// Plane returns the slide's cache key plane.
func (s *Slide) Plane() uint64 {
	return s.plane
}

// Opener returns the file-open primitive backends must read through.
func (s *Slide) Opener() Opener {
	return s.opener
}
