// Package raw implements the wsi backend for fixed-layout multi-channel
// raw pixel files.
//
// Each pyramid level is one file of 16-bit little-endian RGB triples
// (6 bytes per pixel) stored column-major: every column of ColumnWidth
// pixels is a contiguous run of Height rows before the next column begins.
// Tiles are ColumnWidth×64 and decode by truncating each nominal 12-bit
// sample to 8 bits.
package raw

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pathview/wsi"
	"github.com/pathview/wsi/cache"
)

// TileHeight is the fixed native tile height of the format.
const TileHeight = 64

// bytesPerRawPixel is three 16-bit channel samples.
const bytesPerRawPixel = 6

// Level describes one pyramid level's backing file.
//
// Width is not required to be an exact multiple of ColumnWidth; the column
// count is Width / ColumnWidth with truncating division, so a final partial
// column of source pixels is silently inaccessible. This mirrors the
// format's historical addressing and is deliberate.
type Level struct {
	// Path is the pixel data file for this level.
	Path string

	// Width and Height are the level's pixel dimensions.
	Width  int64
	Height int64

	// ColumnWidth is the on-disk column stride and the native tile width.
	ColumnWidth int64

	// Start is the byte offset of pixel data within the file.
	Start int64
}

// columns returns the addressable tile column count.
func (l *Level) columns() int64 {
	return l.Width / l.ColumnWidth
}

// rows returns the tile row count; the last row may be short.
func (l *Level) rows() int64 {
	return (l.Height + TileHeight - 1) / TileHeight
}

// tileOffset returns the byte offset of tile (tileX, tileY) within the
// level file. Columns are contiguous on disk, so advancing one tile column
// skips a full column of Height rows.
func (l *Level) tileOffset(tileX, tileY int64) int64 {
	return l.Start +
		tileY*TileHeight*l.ColumnWidth*bytesPerRawPixel +
		tileX*l.Height*l.ColumnWidth*bytesPerRawPixel
}

// Backend serves a pyramid of raw level files through the wsi contract.
type Backend struct {
	levels []*Level
}

// New validates the level records and constructs a backend over them.
func New(levels []*Level) (*Backend, error) {
	if err := Validate(levels); err != nil {
		return nil, err
	}
	return &Backend{levels: levels}, nil
}

// Validate checks level records without constructing a backend. It is the
// "validate only" path used by format sniffers probing candidate files.
func Validate(levels []*Level) error {
	if len(levels) == 0 {
		return errors.New("raw: no pyramid levels")
	}
	for i, lv := range levels {
		if lv == nil {
			return fmt.Errorf("raw: level %d: nil record", i)
		}
		if lv.Path == "" {
			return fmt.Errorf("raw: level %d: empty file path", i)
		}
		if lv.Width < 1 || lv.Height < 1 {
			return fmt.Errorf("raw: level %d: invalid dimensions %dx%d", i, lv.Width, lv.Height)
		}
		if lv.ColumnWidth < 1 {
			return fmt.Errorf("raw: level %d: invalid column width %d", i, lv.ColumnWidth)
		}
		if lv.ColumnWidth > lv.Width {
			return fmt.Errorf("raw: level %d: column width %d exceeds width %d", i, lv.ColumnWidth, lv.Width)
		}
		if lv.Start < 0 {
			return fmt.Errorf("raw: level %d: negative start offset %d", i, lv.Start)
		}
	}
	return nil
}

// Dimensions returns the pixel dimensions of a level.
func (b *Backend) Dimensions(level int) (w, h int64) {
	lv := b.levels[level]
	return lv.Width, lv.Height
}

// TileGeometry returns the native tile grid of a level.
func (b *Backend) TileGeometry(level int) (tw, th int64) {
	return b.levels[level].ColumnWidth, TileHeight
}

// Downsample reports the level's ratio to level 0 from the recorded
// dimensions, averaged over both axes.
func (b *Backend) Downsample(level int) float64 {
	l0 := b.levels[0]
	lv := b.levels[level]
	return (float64(l0.Width)/float64(lv.Width) + float64(l0.Height)/float64(lv.Height)) / 2
}

// PaintRegion renders the requested rectangle through the shared tile-grid
// painter, decoding tiles on demand and compositing them into dst.
func (b *Backend) PaintRegion(slide *wsi.Slide, dst *wsi.Surface, level int, x, y int64, w, h int32) error {
	lv := b.levels[level]
	return wsi.PaintTileGrid(dst, x, y, w, h, b.Downsample(level), lv.ColumnWidth, TileHeight,
		func(col, row int64) (*wsi.Tile, error) {
			return b.fetchTile(slide, lv, level, col, row)
		})
}

// Close releases the per-level records. The slide calls it exactly once.
func (b *Backend) Close() error {
	b.levels = nil
	return nil
}

// fetchTile returns tile (tileX, tileY) of a level from cache, decoding it
// from disk on a miss. Indices outside the level's tile grid return
// (nil, nil) and the painter leaves them blank.
func (b *Backend) fetchTile(slide *wsi.Slide, lv *Level, level int, tileX, tileY int64) (*wsi.Tile, error) {
	if tileX < 0 || tileY < 0 || tileX >= lv.columns() || tileY >= lv.rows() {
		return nil, nil
	}

	tw := lv.ColumnWidth
	th := min(int64(TileHeight), lv.Height-tileY*TileHeight)

	key := cache.Key{
		Plane: slide.Plane(),
		Level: int32(level),
		Col:   tileX,
		Row:   tileY,
	}
	if e, ok := slide.Cache().Get(key); ok {
		return &wsi.Tile{Pix: e.Pix(), Width: tw, Height: th, Done: e.Release}, nil
	}

	f, err := slide.Opener().Open(lv.Path)
	if err != nil {
		return nil, fmt.Errorf("raw: opening %s: %w", lv.Path, err)
	}
	defer f.Close()

	offset := lv.tileOffset(tileX, tileY)
	wsi.Logger().Debug("decoding tile",
		"path", lv.Path, "level", level, "col", tileX, "row", tileY, "offset", offset)

	buf := make([]byte, tw*th*bytesPerRawPixel)
	if _, err := f.ReadAt(buf, offset); err != nil {
		// A short read is fatal for the tile; io.ReadAt guarantees an error
		// whenever fewer bytes arrive than requested.
		return nil, fmt.Errorf("raw: reading %s: %w", lv.Path, err)
	}

	pix := decodePixels(buf)
	e := slide.Cache().Put(key, pix, int64(len(pix))*4)
	return &wsi.Tile{Pix: e.Pix(), Width: tw, Height: th, Done: e.Release}, nil
}

// decodePixels converts raw 16-bit little-endian RGB triples to xRGB words.
// Each sample is shifted right by 4 bits, truncating a nominal 12-bit value
// to 8 bits — no rounding, no clamping. Decoders depending on bit-for-bit
// output reproduce exactly (s >> 4) & 0xFF per channel.
func decodePixels(buf []byte) []uint32 {
	n := len(buf) / bytesPerRawPixel
	pix := make([]uint32, n)
	for i := 0; i < n; i++ {
		r := uint8(binary.LittleEndian.Uint16(buf[i*6:]) >> 4)
		g := uint8(binary.LittleEndian.Uint16(buf[i*6+2:]) >> 4)
		b := uint8(binary.LittleEndian.Uint16(buf[i*6+4:]) >> 4)
		pix[i] = uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	}
	return pix
}
