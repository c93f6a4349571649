package raw

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pathview/wsi"
)

// sample encodes an 8-bit channel value as the 12-bit wire sample that
// decodes back to it: v<<4 survives the decoder's >>4 exactly.
func sample(v uint8) uint16 {
	return uint16(v) << 4
}

// pixelColor is the test pattern for synthetic levels: each channel encodes
// part of the pixel's coordinates so misplaced tiles are detectable.
func pixelColor(x, y int64) (r, g, b uint8) {
	return uint8(x), uint8(y), uint8(x) ^ uint8(y)
}

// writeRawLevel writes a level file in the on-disk layout: full columns of
// ColumnWidth pixels stored contiguously, 6 bytes per pixel, little-endian.
// Pixels beyond the last full column are not stored.
func writeRawLevel(t *testing.T, lv *Level) {
	t.Helper()

	cols := lv.Width / lv.ColumnWidth
	buf := make([]byte, lv.Start+cols*lv.Height*lv.ColumnWidth*bytesPerRawPixel)
	for c := int64(0); c < cols; c++ {
		for y := int64(0); y < lv.Height; y++ {
			for i := int64(0); i < lv.ColumnWidth; i++ {
				x := c*lv.ColumnWidth + i
				r, g, b := pixelColor(x, y)
				off := lv.Start + (c*lv.Height*lv.ColumnWidth+y*lv.ColumnWidth+i)*bytesPerRawPixel
				binary.LittleEndian.PutUint16(buf[off:], sample(r))
				binary.LittleEndian.PutUint16(buf[off+2:], sample(g))
				binary.LittleEndian.PutUint16(buf[off+4:], sample(b))
			}
		}
	}
	if err := os.WriteFile(lv.Path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func wantPixel(x, y int64) uint32 {
	r, g, b := pixelColor(x, y)
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// countingOpener wraps an Opener and counts Open calls.
type countingOpener struct {
	inner wsi.Opener
	opens int
}

func (c *countingOpener) Open(name string) (wsi.File, error) {
	c.opens++
	return c.inner.Open(name)
}

func TestTileOffset(t *testing.T) {
	lv := &Level{Path: "x", Width: 8, Height: 10, ColumnWidth: 4}

	// Advancing a tile row skips 64 rows of one column; advancing a tile
	// column skips the level's full height.
	if got := lv.tileOffset(1, 2); got != 3312 {
		t.Errorf("tileOffset(1, 2) = %d, want 3312", got)
	}
	if got := lv.tileOffset(0, 0); got != 0 {
		t.Errorf("tileOffset(0, 0) = %d, want 0", got)
	}

	lv.Start = 100
	if got := lv.tileOffset(1, 2); got != 3412 {
		t.Errorf("tileOffset(1, 2) with start 100 = %d, want 3412", got)
	}
}

func TestColumnsTruncate(t *testing.T) {
	// A trailing partial column is not addressable.
	lv := &Level{Width: 10, Height: 20, ColumnWidth: 4}
	if got := lv.columns(); got != 2 {
		t.Errorf("columns() = %d, want 2", got)
	}

	lv = &Level{Width: 8, Height: 20, ColumnWidth: 4}
	if got := lv.columns(); got != 2 {
		t.Errorf("columns() = %d, want 2", got)
	}
}

func TestRowsCeil(t *testing.T) {
	cases := []struct {
		height int64
		want   int64
	}{
		{1, 1},
		{64, 1},
		{65, 2},
		{70, 2},
		{128, 2},
		{129, 3},
	}
	for _, tc := range cases {
		lv := &Level{Height: tc.height}
		if got := lv.rows(); got != tc.want {
			t.Errorf("rows() with height %d = %d, want %d", tc.height, got, tc.want)
		}
	}
}

func TestDecodePixels(t *testing.T) {
	cases := []struct {
		name    string
		r, g, b uint16
		want    uint32
	}{
		{"zero", 0, 0, 0, 0x000000},
		{"full 12-bit", 0x0FFF, 0x0FFF, 0x0FFF, 0xFFFFFF},
		{"channels separate", 0x0AB0, 0x0CD0, 0x0EF0, 0xABCDEF},
		// Samples above 12 bits truncate: only the low 8 of the shifted
		// value survive the uint8 conversion.
		{"13th bit dropped", 0x1230, 0, 0, 0x230000},
		{"low nibble dropped", 0x0ABF, 0, 0, 0xAB0000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 6)
			binary.LittleEndian.PutUint16(buf[0:], tc.r)
			binary.LittleEndian.PutUint16(buf[2:], tc.g)
			binary.LittleEndian.PutUint16(buf[4:], tc.b)
			pix := decodePixels(buf)
			if len(pix) != 1 {
				t.Fatalf("expected 1 pixel, got %d", len(pix))
			}
			if pix[0] != tc.want {
				t.Errorf("decodePixels() = %#06x, want %#06x", pix[0], tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	good := func() []*Level {
		return []*Level{{Path: "a.raw", Width: 100, Height: 100, ColumnWidth: 10}}
	}

	cases := []struct {
		name   string
		levels []*Level
		want   string
	}{
		{"empty", nil, "no pyramid levels"},
		{"nil record", []*Level{nil}, "nil record"},
		{"empty path", func() []*Level { l := good(); l[0].Path = ""; return l }(), "empty file path"},
		{"zero width", func() []*Level { l := good(); l[0].Width = 0; return l }(), "invalid dimensions"},
		{"zero height", func() []*Level { l := good(); l[0].Height = 0; return l }(), "invalid dimensions"},
		{"zero column width", func() []*Level { l := good(); l[0].ColumnWidth = 0; return l }(), "invalid column width"},
		{"column wider than level", func() []*Level { l := good(); l[0].ColumnWidth = 200; return l }(), "exceeds width"},
		{"negative start", func() []*Level { l := good(); l[0].Start = -1; return l }(), "negative start"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.levels)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	if err := Validate(good()); err != nil {
		t.Errorf("valid levels rejected: %v", err)
	}
}

// openTestSlide writes the level files and opens a slide over them.
func openTestSlide(t *testing.T, levels []*Level, opts ...wsi.Option) *wsi.Slide {
	t.Helper()
	for _, lv := range levels {
		writeRawLevel(t, lv)
	}
	backend, err := New(levels)
	if err != nil {
		t.Fatal(err)
	}
	s, err := wsi.NewSlide(backend, len(levels), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadRegionFullLevel(t *testing.T) {
	dir := t.TempDir()
	s := openTestSlide(t, []*Level{{
		Path: filepath.Join(dir, "l0.raw"), Width: 8, Height: 4, ColumnWidth: 4,
	}})

	region := s.ReadRegion(0, 0, 0, 8, 4)
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for y := int64(0); y < 4; y++ {
		for x := int64(0); x < 8; x++ {
			if got, want := region.PixelAt(int(x), int(y)), wantPixel(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %#06x, want %#06x", x, y, got, want)
			}
		}
	}
}

func TestReadRegionSubTileOffset(t *testing.T) {
	dir := t.TempDir()
	s := openTestSlide(t, []*Level{{
		Path: filepath.Join(dir, "l0.raw"), Width: 16, Height: 100, ColumnWidth: 4,
	}})

	// Unaligned in both axes: crosses a column boundary and starts mid-tile.
	region := s.ReadRegion(0, 3, 5, 6, 7)
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for y := 0; y < 7; y++ {
		for x := 0; x < 6; x++ {
			if got, want := region.PixelAt(x, y), wantPixel(int64(x+3), int64(y+5)); got != want {
				t.Fatalf("pixel (%d,%d) = %#06x, want %#06x", x, y, got, want)
			}
		}
	}
}

func TestReadRegionCacheHit(t *testing.T) {
	dir := t.TempDir()
	counting := &countingOpener{inner: wsi.DefaultOpener}
	s := openTestSlide(t, []*Level{{
		Path: filepath.Join(dir, "l0.raw"), Width: 8, Height: 4, ColumnWidth: 4,
	}}, wsi.WithOpener(counting))

	first := s.ReadRegion(0, 0, 0, 8, 4)
	opensAfterFirst := counting.opens
	if opensAfterFirst == 0 {
		t.Fatal("expected the first read to hit the filesystem")
	}

	second := s.ReadRegion(0, 0, 0, 8, 4)
	if counting.opens != opensAfterFirst {
		t.Errorf("expected repaint to be served from cache, got %d extra opens",
			counting.opens-opensAfterFirst)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			if first.PixelAt(x, y) != second.PixelAt(x, y) {
				t.Fatalf("cached repaint differs at (%d,%d)", x, y)
			}
		}
	}
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadRegionOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	counting := &countingOpener{inner: wsi.DefaultOpener}
	s := openTestSlide(t, []*Level{{
		Path: filepath.Join(dir, "l0.raw"), Width: 8, Height: 4, ColumnWidth: 4,
	}}, wsi.WithOpener(counting), wsi.WithBackground("#102030"))

	// Entirely outside the level: background only, no fetches, no error.
	region := s.ReadRegion(0, 1000, 1000, 4, 4)
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counting.opens != 0 {
		t.Errorf("expected no file opens for an out-of-bounds read, got %d", counting.opens)
	}
	if got := region.PixelAt(0, 0); got != 0x102030 {
		t.Errorf("expected background %#06x, got %#06x", 0x102030, got)
	}
}

func TestReadRegionPartialColumnStaysBackground(t *testing.T) {
	dir := t.TempDir()
	// Width 10 with column width 4 leaves x=8,9 unaddressable.
	s := openTestSlide(t, []*Level{{
		Path: filepath.Join(dir, "l0.raw"), Width: 10, Height: 4, ColumnWidth: 4,
	}}, wsi.WithBackground("#FF00FF"))

	region := s.ReadRegion(0, 0, 0, 10, 4)
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for x := 0; x < 8; x++ {
		if got, want := region.PixelAt(x, 0), wantPixel(int64(x), 0); got != want {
			t.Fatalf("pixel (%d,0) = %#06x, want %#06x", x, got, want)
		}
	}
	for x := 8; x < 10; x++ {
		if got := region.PixelAt(x, 0); got != 0xFF00FF {
			t.Errorf("pixel (%d,0) = %#06x, want background", x, got)
		}
	}
}

func TestReadRegionShortLastTileRow(t *testing.T) {
	dir := t.TempDir()
	// Height 70 gives a second tile row of only 6 pixels.
	s := openTestSlide(t, []*Level{{
		Path: filepath.Join(dir, "l0.raw"), Width: 4, Height: 70, ColumnWidth: 4,
	}})

	region := s.ReadRegion(0, 0, 60, 4, 10)
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 4; x++ {
			if got, want := region.PixelAt(x, y), wantPixel(int64(x), int64(y+60)); got != want {
				t.Fatalf("pixel (%d,%d) = %#06x, want %#06x", x, y, got, want)
			}
		}
	}
}

func TestReadRegionShortReadLatches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.raw")
	// Claim 64 rows but store only a few bytes.
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}

	backend, err := New([]*Level{{Path: path, Width: 4, Height: 64, ColumnWidth: 4}})
	if err != nil {
		t.Fatal(err)
	}
	s, err := wsi.NewSlide(backend, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	region := s.ReadRegion(0, 0, 0, 4, 4)
	if region == nil {
		t.Fatal("expected a best-effort surface, got nil")
	}
	err = s.Err()
	if err == nil {
		t.Fatal("expected a latched read error")
	}
	if !strings.Contains(err.Error(), "truncated.raw") {
		t.Errorf("error %q does not name the failing file", err)
	}
}

func TestReadRegionMissingFileLatches(t *testing.T) {
	backend, err := New([]*Level{{Path: "/nonexistent/l0.raw", Width: 4, Height: 4, ColumnWidth: 4}})
	if err != nil {
		t.Fatal(err)
	}
	s, err := wsi.NewSlide(backend, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.ReadRegion(0, 0, 0, 4, 4)
	if err := s.Err(); err == nil {
		t.Fatal("expected a latched open error")
	}
}

func TestMultiLevelPyramid(t *testing.T) {
	dir := t.TempDir()
	levels := []*Level{
		{Path: filepath.Join(dir, "l0.raw"), Width: 16, Height: 128, ColumnWidth: 4},
		{Path: filepath.Join(dir, "l1.raw"), Width: 8, Height: 64, ColumnWidth: 4},
	}
	s := openTestSlide(t, levels)

	if s.LevelCount() != 2 {
		t.Fatalf("expected 2 levels, got %d", s.LevelCount())
	}
	ds, err := s.LevelDownsample(1)
	if err != nil {
		t.Fatal(err)
	}
	if ds != 2 {
		t.Errorf("expected downsample 2, got %v", ds)
	}

	// Level 1 pixels read back with level 0 coordinates halved.
	region := s.ReadRegion(1, 8, 16, 4, 4)
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got, want := region.PixelAt(x, y), wantPixel(int64(x+4), int64(y+8)); got != want {
				t.Fatalf("pixel (%d,%d) = %#06x, want %#06x", x, y, got, want)
			}
		}
	}
}

func TestDownsampleNonUniform(t *testing.T) {
	b := &Backend{levels: []*Level{
		{Width: 100, Height: 200, ColumnWidth: 10},
		{Width: 50, Height: 40, ColumnWidth: 10},
	}}
	// Average of 100/50 = 2 and 200/40 = 5.
	if got := b.Downsample(1); got != 3.5 {
		t.Errorf("Downsample(1) = %v, want 3.5", got)
	}
}

func TestGeometryAfterClose(t *testing.T) {
	dir := t.TempDir()
	s := openTestSlide(t, []*Level{{
		Path: filepath.Join(dir, "l0.raw"), Width: 8, Height: 4, ColumnWidth: 4,
	}})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// The backend's level table is gone; the handle must absorb the calls.
	if w, h := s.Dimensions(); w != 0 || h != 0 {
		t.Errorf("Dimensions() after close = %dx%d, want zeros", w, h)
	}
	if _, _, err := s.LevelDimensions(0); !errors.Is(err, wsi.ErrClosed) {
		t.Errorf("LevelDimensions after close = %v, want ErrClosed", err)
	}
	if _, _, err := s.TileGeometry(0); !errors.Is(err, wsi.ErrClosed) {
		t.Errorf("TileGeometry after close = %v, want ErrClosed", err)
	}
	if _, err := s.LevelDownsample(0); !errors.Is(err, wsi.ErrClosed) {
		t.Errorf("LevelDownsample after close = %v, want ErrClosed", err)
	}
}

func TestBackendClose(t *testing.T) {
	backend, err := New([]*Level{{Path: "x", Width: 4, Height: 4, ColumnWidth: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.Close(); err != nil {
		t.Fatal(err)
	}
	if backend.levels != nil {
		t.Error("expected Close to release levels")
	}
}
