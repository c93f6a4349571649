// Package wsi provides uniform, thread-safe access to multi-resolution
// whole-slide images.
//
// # Overview
//
// A whole-slide image is a gigapixel pyramidal image: level 0 holds the full
// resolution scan and each higher level a progressively downsampled copy.
// wsi exposes the pyramid through an opaque Slide handle that answers
// geometry queries and renders arbitrary pixel sub-regions at arbitrary
// levels, decoding tiles on demand and sharing them through a bounded,
// reference-counted cache.
//
// # Quick Start
//
// Format packages register themselves on import; Open probes them:
//
//	import (
//	    "github.com/pathview/wsi"
//	    _ "github.com/pathview/wsi/backend/raw"
//	)
//
//	slide, err := wsi.Open("scan.wsi.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer slide.Close()
//
//	region := slide.ReadRegion(0, 1024, 2048, 512, 512)
//	if err := slide.Err(); err != nil {
//	    log.Fatal(err)
//	}
//	png.Encode(out, region)
//
// # Architecture
//
// The library is organized into:
//   - Public API: Slide, Surface, Backend, PaintTileGrid, the format registry
//   - cache: shared tile cache with reference-counted entries
//   - backend/raw: fixed-stride 16-bit raw format decoder
//
// A format backend implements the four-operation Backend contract and never
// sees the tiling machinery of other formats; the engine dispatches through
// the interface only. The region painter (PaintTileGrid) is format-agnostic:
// backends hand it a tile-fetch callback and it handles grid arithmetic,
// row-major iteration and compositing.
//
// # Coordinate System
//
// ReadRegion takes x and y in level 0 coordinates and w, h in the target
// level's coordinates, with the origin at the top-left. Requests extending
// past the pyramid edge are clipped silently.
//
// # Errors
//
// Decode and I/O failures are latched on the Slide: the first error recorded
// persists until ClearErr or Close, and region reads return best-effort
// partial output rather than aborting. Query the latch with Err.
package wsi
