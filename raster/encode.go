package raster

import (
	"bytes"
	"fmt"
)

// DefaultTileSize is the tile width and height written by Encode when none
// is given.
const DefaultTileSize = 64

// Encode writes s as a raster stream of tileW x tileH tiles laid out from
// s.Rect.Min. Tiles whose pixels all equal defaultPixel (zero when nil) are
// omitted. Non-positive tile sizes use DefaultTileSize.
func Encode(s *Surface, tileW, tileH int, defaultPixel []byte) ([]byte, error) {
	if tileW <= 0 {
		tileW = DefaultTileSize
	}
	if tileH <= 0 {
		tileH = DefaultTileSize
	}
	if tileW > MaxTileSize || tileH > MaxTileSize {
		return nil, fmt.Errorf("tile size %dx%d exceeds %d", tileW, tileH, MaxTileSize)
	}
	size := s.PixelSize()
	if size == 0 {
		return nil, fmt.Errorf("cannot encode pixel format %s", s.Format)
	}
	if defaultPixel == nil {
		defaultPixel = make([]byte, size)
	}
	if len(defaultPixel) != size {
		return nil, fmt.Errorf("default pixel has %d bytes, %s uses %d", len(defaultPixel), s.Format, size)
	}

	h := Header{
		Version:    Version,
		TileWidth:  tileW,
		TileHeight: tileH,
		PixelSize:  size,
		ColorSpace: s.Format.ID(),
		Format:     s.Format,
	}

	w, ht := s.Rect.Dx(), s.Rect.Dy()
	cols := (w + tileW - 1) / tileW
	rows := (ht + tileH - 1) / tileH

	var body bytes.Buffer
	tile := make([]byte, tileW*tileH*size)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, y := col*tileW, row*tileH
			if !extract(tile, s, x, y, tileW, tileH, defaultPixel) {
				continue
			}
			payload, err := EncodeTile(tile, h)
			if err != nil {
				return nil, fmt.Errorf("failed to encode tile at %d,%d: %w", x, y, err)
			}
			fmt.Fprintf(&body, "%d,%d,RLE,%d\n", x, y, len(payload))
			body.Write(payload)
			h.TileCount++
		}
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "VERSION %d\n", h.Version)
	fmt.Fprintf(&out, "TILEWIDTH %d\n", h.TileWidth)
	fmt.Fprintf(&out, "TILEHEIGHT %d\n", h.TileHeight)
	fmt.Fprintf(&out, "PIXELSIZE %d\n", h.PixelSize)
	if h.ColorSpace != "" {
		fmt.Fprintf(&out, "COLORSPACE %s\n", h.ColorSpace)
	}
	fmt.Fprintf(&out, "DATA %d\n", h.TileCount)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// extract copies the tile at (x, y), relative to s.Rect.Min, into dst,
// padding with def outside s. It reports whether any pixel differs from
// def.
func extract(dst []byte, s *Surface, x, y, tileW, tileH int, def []byte) bool {
	size := len(def)
	differs := false
	for ty := 0; ty < tileH; ty++ {
		for tx := 0; tx < tileW; tx++ {
			d := dst[(ty*tileW+tx)*size:][:size]
			px := s.Pixel(s.Rect.Min.X+x+tx, s.Rect.Min.Y+y+ty)
			if px == nil {
				copy(d, def)
				continue
			}
			copy(d, px)
			if !differs && !bytes.Equal(px, def) {
				differs = true
			}
		}
	}
	return differs
}
