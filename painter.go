package wsi

import "math"

// Tile is one decoded tile handed to the region painter.
type Tile struct {
	// Pix holds Width*Height xRGB words in row-major order.
	Pix []uint32

	// Width and Height are the tile's pixel dimensions. The last tile row
	// of a level may be shorter than the native tile height.
	Width  int64
	Height int64

	// Done releases the tile's backing cache entry once the painter has
	// composited it. May be nil for tiles not owned by a cache.
	Done func()
}

// TileFetcher produces the tile at (col, row) for the level being painted,
// from cache or by decoding. Returning (nil, nil) means the indices lie
// outside the level's tile grid; the painter skips them silently. Any error
// aborts the remaining iteration.
type TileFetcher func(col, row int64) (*Tile, error)

// PaintTileGrid converts the requested rectangle into a tile-index range and
// composites each fetched tile into dst. It is the format-agnostic half of
// every backend's PaintRegion: backends supply only the per-tile fetch.
//
// x and y are level 0 coordinates; w and h are level coordinates. downsample
// is the level's ratio to level 0, and tileW, tileH the native tile grid.
// Tiles are visited in row-major order, so compositing is deterministic.
//
// Start bounds use floor division and end bounds ceiling division: the full
// rectangle is covered even when unaligned to tile boundaries, and no tile
// is skipped at the left or top edge. The whole tile block is then shifted
// left and up by the sub-tile offset so the rectangle's top-left lands at
// the surface origin.
func PaintTileGrid(dst *Surface, x, y int64, w, h int32, downsample float64, tileW, tileH int64, fetch TileFetcher) error {
	if w <= 0 || h <= 0 || tileW <= 0 || tileH <= 0 {
		return nil
	}

	dsX := float64(x) / downsample
	dsY := float64(y) / downsample

	startTileX := int64(math.Floor(dsX / float64(tileW)))
	endTileX := int64(math.Ceil((dsX + float64(w)) / float64(tileW)))
	startTileY := int64(math.Floor(dsY / float64(tileH)))
	endTileY := int64(math.Ceil((dsY + float64(h)) / float64(tileH)))

	offsetX := dsX - float64(startTileX*tileW)
	offsetY := dsY - float64(startTileY*tileH)

	for row := startTileY; row < endTileY; row++ {
		for col := startTileX; col < endTileX; col++ {
			tile, err := fetch(col, row)
			if err != nil {
				return err
			}
			if tile == nil {
				continue
			}

			dx := float64((col-startTileX)*tileW) - offsetX
			dy := float64((row-startTileY)*tileH) - offsetY
			dst.DrawTile(tile.Pix, int(tile.Width), int(tile.Height),
				int(math.Floor(dx)), int(math.Floor(dy)))

			if tile.Done != nil {
				tile.Done()
			}
		}
	}

	return nil
}
