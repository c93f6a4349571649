package wsi

import (
	"image"
	"image/color"
)

// Surface is a rectangular pixel buffer that region paints composite into.
//
// Pixels are stored as xRGB words: red in bits 16-23, green in bits 8-15,
// blue in bits 0-7. The top byte is ignored; decoded slide tiles carry no
// real alpha. The zero-width or zero-height surface is valid and empty.
//
// Surface is not safe for concurrent mutation; each ReadRegion call paints
// into its own surface, so callers never share one between paints.
type Surface struct {
	width  int
	height int
	pix    []uint32
}

// NewSurface creates a surface with the given dimensions.
// Negative dimensions are treated as zero.
func NewSurface(width, height int) *Surface {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Surface{
		width:  width,
		height: height,
		pix:    make([]uint32, width*height),
	}
}

// Width returns the width of the surface in pixels.
func (s *Surface) Width() int {
	return s.width
}

// Height returns the height of the surface in pixels.
func (s *Surface) Height() int {
	return s.height
}

// Pix returns the raw pixel words in row-major order.
func (s *Surface) Pix() []uint32 {
	return s.pix
}

// Fill sets every pixel to the given xRGB word.
func (s *Surface) Fill(xrgb uint32) {
	for i := range s.pix {
		s.pix[i] = xrgb
	}
}

// DrawTile composites a tw×th tile buffer at (dx, dy), a pure translation.
// Portions of the tile falling outside the surface are clipped silently;
// dx and dy may be negative.
func (s *Surface) DrawTile(tile []uint32, tw, th int, dx, dy int) {
	if tw <= 0 || th <= 0 {
		return
	}

	// Clip the tile rectangle against the surface bounds.
	srcX, srcY := 0, 0
	if dx < 0 {
		srcX = -dx
		dx = 0
	}
	if dy < 0 {
		srcY = -dy
		dy = 0
	}
	w := tw - srcX
	if dx+w > s.width {
		w = s.width - dx
	}
	h := th - srcY
	if dy+h > s.height {
		h = s.height - dy
	}
	if w <= 0 || h <= 0 {
		return
	}

	for row := 0; row < h; row++ {
		src := tile[(srcY+row)*tw+srcX:]
		dst := s.pix[(dy+row)*s.width+dx:]
		copy(dst[:w], src[:w])
	}
}

// SetPixel sets a single pixel. Out-of-bounds coordinates are ignored.
func (s *Surface) SetPixel(x, y int, xrgb uint32) {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return
	}
	s.pix[y*s.width+x] = xrgb
}

// PixelAt returns the xRGB word at (x, y), or zero if out of bounds.
func (s *Surface) PixelAt(x, y int) uint32 {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return 0
	}
	return s.pix[y*s.width+x]
}

// ToImage converts the surface to an image.RGBA with opaque alpha.
func (s *Surface) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	for i, p := range s.pix {
		img.Pix[i*4+0] = uint8(p >> 16)
		img.Pix[i*4+1] = uint8(p >> 8)
		img.Pix[i*4+2] = uint8(p)
		img.Pix[i*4+3] = 0xFF
	}
	return img
}

// At implements the image.Image interface.
func (s *Surface) At(x, y int) color.Color {
	p := s.PixelAt(x, y)
	return color.RGBA{
		R: uint8(p >> 16),
		G: uint8(p >> 8),
		B: uint8(p),
		A: 0xFF,
	}
}

// Bounds implements the image.Image interface.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// ColorModel implements the image.Image interface.
func (s *Surface) ColorModel() color.Model {
	return color.RGBAModel
}
