package raw

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tailscale/hujson"

	"github.com/pathview/wsi"
)

// quickhashBytes is how much of the top-level pixel data feeds the
// slide's content hash.
const quickhashBytes = 32 << 10

// indexFile is the sidecar describing a raw slide. The file is HuJSON, so
// comments and trailing commas are allowed:
//
//	{
//	    "vendor": "generic-raw",
//	    "background": "#F8F8F8",
//	    "mppX": 0.46, "mppY": 0.46,
//	    "objectivePower": "20",
//	    "levels": [
//	        // level 0 is full resolution
//	        {"path": "scan.l0.raw", "width": 3968, "height": 2048, "columnWidth": 64, "start": 0},
//	        {"path": "scan.l1.raw", "width": 1984, "height": 1024, "columnWidth": 64, "start": 0},
//	    ],
//	}
type indexFile struct {
	Vendor         string       `json:"vendor"`
	Background     string       `json:"background"`
	MPPX           float64      `json:"mppX"`
	MPPY           float64      `json:"mppY"`
	ObjectivePower string       `json:"objectivePower"`
	Comment        string       `json:"comment"`
	Levels         []indexLevel `json:"levels"`
}

type indexLevel struct {
	Path        string `json:"path"`
	Width       int64  `json:"width"`
	Height      int64  `json:"height"`
	ColumnWidth int64  `json:"columnWidth"`
	Start       int64  `json:"start"`
}

// OpenIndex opens a raw slide from its index file, returning a ready slide
// handle. Relative level paths resolve against the index file's directory.
func OpenIndex(path string, opts ...wsi.Option) (*wsi.Slide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raw: reading index: %w", err)
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("raw: parsing index %s: %w", path, err)
	}
	var idx indexFile
	if err := json.Unmarshal(standardized, &idx); err != nil {
		return nil, fmt.Errorf("raw: parsing index %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	levels := make([]*Level, len(idx.Levels))
	for i, il := range idx.Levels {
		p := il.Path
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		levels[i] = &Level{
			Path:        p,
			Width:       il.Width,
			Height:      il.Height,
			ColumnWidth: il.ColumnWidth,
			Start:       il.Start,
		}
	}

	backend, err := New(levels)
	if err != nil {
		return nil, err
	}

	slide, err := wsi.NewSlide(backend, len(levels), opts...)
	if err != nil {
		return nil, err
	}

	vendor := idx.Vendor
	if vendor == "" {
		vendor = "generic-raw"
	}
	slide.SetProperty(wsi.PropVendor, vendor)
	if idx.Background != "" {
		if err := slide.SetBackgroundColor(idx.Background); err != nil {
			slide.Close()
			return nil, err
		}
	}
	if idx.MPPX > 0 {
		slide.SetProperty(wsi.PropMPPX, strconv.FormatFloat(idx.MPPX, 'f', -1, 64))
	}
	if idx.MPPY > 0 {
		slide.SetProperty(wsi.PropMPPY, strconv.FormatFloat(idx.MPPY, 'f', -1, 64))
	}
	if idx.ObjectivePower != "" {
		slide.SetProperty(wsi.PropObjectivePower, idx.ObjectivePower)
	}
	if idx.Comment != "" {
		slide.SetProperty(wsi.PropComment, idx.Comment)
	}

	hash, err := quickhash(slide.Opener(), levels[0])
	if err != nil {
		slide.Close()
		return nil, err
	}
	slide.SetProperty(wsi.PropQuickhash, hash)

	return slide, nil
}

// quickhash hashes the first quickhashBytes of level 0 pixel data so that
// two slides with identical geometry but different content still differ.
func quickhash(opener wsi.Opener, lv *Level) (string, error) {
	f, err := opener.Open(lv.Path)
	if err != nil {
		return "", fmt.Errorf("raw: hashing %s: %w", lv.Path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.NewSectionReader(f, lv.Start, quickhashBytes))
	if err != nil {
		return "", fmt.Errorf("raw: hashing %s: %w", lv.Path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
