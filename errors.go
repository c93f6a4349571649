package wsi

import "errors"

// Sentinel errors for the wsi package.
var (
	// ErrClosed is returned when an operation is attempted on a closed slide.
	ErrClosed = errors.New("wsi: slide is closed")

	// ErrInvalidLevel is returned when a pyramid level is out of range.
	ErrInvalidLevel = errors.New("wsi: invalid pyramid level")

	// ErrNoBackend is returned when a slide is constructed without a backend.
	ErrNoBackend = errors.New("wsi: no backend installed")

	// ErrUnsupportedFormat is returned by Open when no registered format
	// recognizes the file.
	ErrUnsupportedFormat = errors.New("wsi: unsupported format")
)
