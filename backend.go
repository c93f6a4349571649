package wsi

// Backend is the contract between the engine and a slide file format.
//
// A backend serves exactly one open slide: it answers geometry queries and
// paints pixel regions, and is torn down once when the slide closes. The
// engine dispatches through this interface only; no format ever sees the
// tiling machinery of another.
//
// Level arguments are validated by the Slide before any call reaches the
// backend, so implementations may index level tables without re-checking.
type Backend interface {
	// Dimensions returns the pixel dimensions of a pyramid level.
	Dimensions(level int) (w, h int64)

	// TileGeometry returns the native tile width and height of a level.
	TileGeometry(level int) (tw, th int64)

	// PaintRegion renders the rectangle (x, y, w, h) of a level into dst.
	// x and y are level 0 coordinates, w and h level coordinates. Portions
	// outside the pyramid are left untouched. The slide argument gives the
	// backend access to the tile cache, cache plane and file opener.
	//
	// A returned error is latched on the slide; dst may hold a partial
	// paint.
	PaintRegion(slide *Slide, dst *Surface, level int, x, y int64, w, h int32) error

	// Close releases backend resources. Called exactly once, by Slide.Close.
	Close() error
}

// Downsampler is an optional Backend extension for formats whose level
// ratios are not powers of two. Slide.LevelDownsample uses it when present
// and falls back to 2^level otherwise.
type Downsampler interface {
	// Downsample returns the level's downsample factor relative to level 0.
	Downsample(level int) float64
}
