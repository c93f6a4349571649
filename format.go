package wsi

import (
	"fmt"
	"sync"
)

// Format describes a slide file format that can be probed and opened.
type Format struct {
	// Name identifies the format, e.g. "raw".
	Name string

	// Detect reports whether the file at path looks like this format.
	// It should be cheap: sniff the name or header, do not decode pixels.
	Detect func(path string) bool

	// Open opens the file as a slide.
	Open func(path string, opts ...Option) (*Slide, error)
}

// registry holds registered formats in registration order, so probing is
// deterministic.
var (
	registryMu sync.RWMutex
	formats    []Format
)

// RegisterFormat registers a slide format for use by Open.
// This is typically called from init() functions in format packages.
// Registering a name twice replaces the earlier entry.
func RegisterFormat(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i := range formats {
		if formats[i].Name == f.Name {
			formats[i] = f
			return
		}
	}
	formats = append(formats, f)
}

// snapshotFormats copies the registry so probing runs without the lock:
// Detect and Open do file I/O and may themselves register formats.
func snapshotFormats() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return append([]Format(nil), formats...)
}

// Formats returns the names of all registered formats.
func Formats() []string {
	snapshot := snapshotFormats()
	names := make([]string, 0, len(snapshot))
	for _, f := range snapshot {
		names = append(names, f.Name)
	}
	return names
}

// DetectFormat returns the name of the first registered format that
// recognizes the file at path.
func DetectFormat(path string) (string, error) {
	for _, f := range snapshotFormats() {
		if f.Detect(path) {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Open probes the registered formats and opens path with the first match.
// Format packages register themselves on import:
//
//	import _ "github.com/pathview/wsi/backend/raw"
//
//	slide, err := wsi.Open("scan.wsi.json")
func Open(path string, opts ...Option) (*Slide, error) {
	for _, f := range snapshotFormats() {
		if f.Detect(path) {
			Logger().Debug("format detected", "path", path, "format", f.Name)
			return f.Open(path, opts...)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}
