// Command wsitool inspects and renders whole-slide images.
//
// Usage:
//
//	wsitool info <index>
//	wsitool region --level 0 --x 0 --y 0 --width 512 --height 512 --out region.png <index>
//	wsitool thumbnail --max 512 --out thumb.png <index>
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"sort"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/pathview/wsi"
	_ "github.com/pathview/wsi/backend/raw"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	var err error
	switch args[0] {
	case "info":
		err = cmdInfo(args[1:])
	case "region":
		err = cmdRegion(args[1:])
	case "thumbnail":
		err = cmdThumbnail(args[1:])
	default:
		usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "wsitool:", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  wsitool info <index>
  wsitool region --level N --x X --y Y --width W --height H --out FILE <index>
  wsitool thumbnail --max N --out FILE <index>`)
}

func openSlide(fs *flag.FlagSet, verbose bool) (*wsi.Slide, error) {
	if verbose {
		wsi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one index file, got %d arguments", fs.NArg())
	}
	return wsi.Open(fs.Arg(0))
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	slide, err := openSlide(fs, *verbose)
	if err != nil {
		return err
	}
	defer slide.Close()

	fmt.Printf("levels: %d\n", slide.LevelCount())
	for level := 0; level < slide.LevelCount(); level++ {
		w, h, err := slide.LevelDimensions(level)
		if err != nil {
			return err
		}
		tw, th, err := slide.TileGeometry(level)
		if err != nil {
			return err
		}
		ds, err := slide.LevelDownsample(level)
		if err != nil {
			return err
		}
		fmt.Printf("  level %d: %dx%d, tiles %dx%d, downsample %.2f\n", level, w, h, tw, th, ds)
	}

	props := slide.Properties()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %s\n", k, props[k])
	}
	return nil
}

func cmdRegion(args []string) error {
	fs := flag.NewFlagSet("region", flag.ContinueOnError)
	level := fs.Int("level", 0, "pyramid level")
	x := fs.Int64("x", 0, "left edge, level 0 coordinates")
	y := fs.Int64("y", 0, "top edge, level 0 coordinates")
	width := fs.Int32("width", 512, "region width in level pixels")
	height := fs.Int32("height", 512, "region height in level pixels")
	out := fs.String("out", "region.png", "output PNG file")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	slide, err := openSlide(fs, *verbose)
	if err != nil {
		return err
	}
	defer slide.Close()

	region := slide.ReadRegion(*level, *x, *y, *width, *height)
	if err := slide.Err(); err != nil {
		return err
	}
	return writePNG(*out, region)
}

func cmdThumbnail(args []string) error {
	fs := flag.NewFlagSet("thumbnail", flag.ContinueOnError)
	maxSize := fs.Int("max", 512, "maximum thumbnail edge in pixels")
	out := fs.String("out", "thumbnail.png", "output PNG file")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	slide, err := openSlide(fs, *verbose)
	if err != nil {
		return err
	}
	defer slide.Close()

	thumb, err := slide.Thumbnail(*maxSize, *maxSize)
	if err != nil {
		return err
	}
	return writePNG(*out, thumb)
}

// writePNG encodes img and writes it atomically so an interrupted run never
// leaves a truncated file.
func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
