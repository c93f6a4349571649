package wsi

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// thumbnailMaxPixels bounds the level read for Thumbnail so a pyramid with
// no small levels cannot force a multi-gigapixel decode.
const thumbnailMaxPixels = 1 << 26

// Thumbnail renders the whole slide scaled to fit within maxW×maxH,
// preserving aspect ratio. It reads the smallest pyramid level in full and
// resizes it with Lanczos resampling.
func (s *Slide) Thumbnail(maxW, maxH int) (image.Image, error) {
	if maxW < 1 || maxH < 1 {
		return nil, fmt.Errorf("wsi: invalid thumbnail bounds %dx%d", maxW, maxH)
	}

	level := s.levelCount - 1
	w, h, err := s.LevelDimensions(level)
	if err != nil {
		return nil, err
	}
	if w*h > thumbnailMaxPixels {
		return nil, fmt.Errorf("wsi: smallest level is %dx%d, too large for a thumbnail", w, h)
	}

	prior := s.Err()
	surf := s.ReadRegion(level, 0, 0, int32(w), int32(h))
	if err := s.Err(); err != nil && prior == nil {
		return nil, err
	}

	return imaging.Fit(surf.ToImage(), maxW, maxH, imaging.Lanczos), nil
}

// ReadScaledRegion renders an outW×outH view of the slide at an arbitrary
// downsample factor. x and y are level 0 coordinates of the view's top-left
// corner. The read uses the best pyramid level at or above the requested
// factor, then scales bilinearly to the output size.
//
// Like ReadRegion, failures are latched on the slide and the result is
// best-effort; check Err afterwards.
func (s *Slide) ReadScaledRegion(x, y int64, downsample float64, outW, outH int) *image.RGBA {
	if outW < 0 {
		outW = 0
	}
	if outH < 0 {
		outH = 0
	}
	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	if outW == 0 || outH == 0 || downsample <= 0 {
		return dst
	}

	level := s.BestLevelForDownsample(downsample)
	levelDS, err := s.LevelDownsample(level)
	if err != nil {
		s.latch(err)
		return dst
	}

	// Size of the region at the chosen level covering the requested view.
	relW := int32(math.Ceil(float64(outW) * downsample / levelDS))
	relH := int32(math.Ceil(float64(outH) * downsample / levelDS))

	surf := s.ReadRegion(level, x, y, relW, relH)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), surf, surf.Bounds(), xdraw.Src, nil)
	return dst
}
