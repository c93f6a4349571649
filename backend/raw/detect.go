package raw

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/pathview/wsi"
)

func init() {
	wsi.RegisterFormat(wsi.Format{
		Name:   "raw",
		Detect: Detect,
		Open:   OpenIndex,
	})
}

// Detect reports whether path names a raw slide index: a .wsi.json file
// whose level records validate. Pixel data is not touched.
func Detect(path string) bool {
	if !strings.HasSuffix(path, ".wsi.json") {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return false
	}
	var idx indexFile
	if err := json.Unmarshal(standardized, &idx); err != nil {
		return false
	}
	levels := make([]*Level, len(idx.Levels))
	for i, il := range idx.Levels {
		levels[i] = &Level{
			Path:        il.Path,
			Width:       il.Width,
			Height:      il.Height,
			ColumnWidth: il.ColumnWidth,
			Start:       il.Start,
		}
	}
	return Validate(levels) == nil
}
