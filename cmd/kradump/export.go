package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/tsawler/kra"
	"github.com/tsawler/kra/raster"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// exportRasters decodes every raster node of f and writes it to dir.
// Surfaces with no image.Image rendition are skipped.
func exportRasters(ctx context.Context, f *kra.File, dir, format string, log *zap.Logger) (int, error) {
	ids := f.RasterNodes()
	surfaces, err := f.DecodeRasters(ctx, ids...)
	if err != nil {
		return 0, err
	}

	written := 0
	doc := f.Document()
	for _, id := range ids {
		n, _ := doc.Lookup(id)
		img, err := surfaces[id].Image()
		if errors.Is(err, raster.ErrUnsupportedImage) {
			log.Warn("skipping raster", zap.String("node", n.Name), zap.Error(err))
			continue
		}
		if err != nil {
			return written, err
		}
		name := fileName(n.Name, n.Filename) + "." + format
		if err := writeImage(filepath.Join(dir, name), img, format); err != nil {
			return written, err
		}
		log.Debug("exported raster", zap.String("node", n.Name), zap.String("file", name))
		written++
	}
	return written, nil
}

// writeThumbnail scales the merged image so its longest side is size pixels.
func writeThumbnail(f *kra.File, path string, size int) error {
	src, err := f.MergedImage()
	if err != nil {
		return err
	}
	return writeImage(path, thumbnail(src, size), "png")
}

func thumbnail(src image.Image, size int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*size/max(w, 1))
		w = size
	} else {
		w = max(1, w*size/h)
		h = size
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func writeImage(path string, img image.Image, format string) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	switch format {
	case "tiff":
		err = tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "png":
		err = png.Encode(out, img)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	return err
}

// fileName builds a file system safe name from a node name, falling back to
// its stored filename.
func fileName(name, stored string) string {
	s := strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	if s == "" {
		s = stored
	}
	if stored != "" && s != stored {
		s += "-" + stored
	}
	return s
}
