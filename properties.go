package wsi

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Well-known property names. Backends populate these during construction;
// absence means the format does not carry the value.
const (
	// PropVendor is the scanner vendor name.
	PropVendor = "wsi.vendor"

	// PropBackgroundColor is the slide background as a hex string ("#FFFFFF").
	PropBackgroundColor = "wsi.background-color"

	// PropMPPX and PropMPPY are microns per pixel at level 0.
	PropMPPX = "wsi.mpp-x"
	PropMPPY = "wsi.mpp-y"

	// PropObjectivePower is the objective magnification, e.g. "40".
	PropObjectivePower = "wsi.objective-power"

	// PropComment is free-text slide metadata.
	PropComment = "wsi.comment"

	// PropQuickhash is a content hash identifying the slide data.
	PropQuickhash = "wsi.quickhash-1"
)

// Property returns a metadata value by name.
func (s *Slide) Property(name string) (string, bool) {
	v, ok := s.props[name]
	return v, ok
}

// Properties returns a copy of all metadata key/value pairs.
func (s *Slide) Properties() map[string]string {
	out := make(map[string]string, len(s.props))
	for k, v := range s.props {
		out[k] = v
	}
	return out
}

// SetProperty records a metadata key/value pair. It is intended for backend
// constructors and is not safe for concurrent use; properties are frozen
// once the slide is published.
func (s *Slide) SetProperty(name, value string) {
	s.props[name] = value
}

// SetBackgroundColor sets the color painted behind regions from a hex
// string such as "#F4F4F4", and records it as PropBackgroundColor.
func (s *Slide) SetBackgroundColor(hex string) error {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("wsi: parsing background color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	s.background = uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	s.props[PropBackgroundColor] = hex
	return nil
}

// BackgroundColor returns the background as an xRGB word.
func (s *Slide) BackgroundColor() uint32 {
	return s.background
}
