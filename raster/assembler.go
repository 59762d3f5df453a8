package raster

import (
	"image"

	"github.com/tsawler/kra/model"
)

// Tile is a decoded tile: its descriptor and interleaved pixels.
type Tile struct {
	TileDescriptor
	Pix []byte
}

// Assemble stitches tiles into a surface covering bounds. A tile at (X, Y)
// lands at bounds.Min + (X, Y); pixels falling outside bounds are
// discarded. Cells with no tile keep defaultPixel, or zero when it is nil.
// Two tiles in the same cell are a structural error.
func Assemble(h Header, tiles []Tile, bounds image.Rectangle, defaultPixel []byte) (*Surface, error) {
	size := h.Format.PixelSize()
	if defaultPixel != nil && len(defaultPixel) != size {
		return nil, model.Errorf(model.ErrPixelFormatMismatch, "default pixel has %d bytes, %s uses %d",
			len(defaultPixel), h.Format, size)
	}

	if err := CheckBounds(bounds, h.Format); err != nil {
		return nil, err
	}
	if h.TileWidth <= 0 || h.TileHeight <= 0 || h.TileWidth > MaxTileSize || h.TileHeight > MaxTileSize {
		return nil, model.Errorf(model.ErrStructural, "invalid tile size %dx%d", h.TileWidth, h.TileHeight)
	}

	s := NewSurface(bounds, h.Format)
	if defaultPixel != nil {
		s.Fill(defaultPixel)
	}

	seen := make(map[image.Point]struct{}, len(tiles))
	for _, t := range tiles {
		cell := image.Pt(t.Col, t.Row)
		if _, dup := seen[cell]; dup {
			return nil, model.Errorf(model.ErrStructural, "two tiles at %d,%d", t.X, t.Y).WithOffset(t.Offset)
		}
		seen[cell] = struct{}{}

		if len(t.Pix) != h.TilePixels()*size {
			return nil, model.Errorf(model.ErrCodec, "tile at %d,%d has %d bytes, want %d",
				t.X, t.Y, len(t.Pix), h.TilePixels()*size).WithOffset(t.Offset)
		}
		place(s, t, h)
	}
	return s, nil
}

// place copies the part of t that overlaps s.
func place(s *Surface, t Tile, h Header) {
	if t.X >= s.Rect.Dx() || t.Y >= s.Rect.Dy() || t.X <= -h.TileWidth || t.Y <= -h.TileHeight {
		return
	}
	origin := s.Rect.Min.Add(image.Pt(t.X, t.Y))
	area := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(h.TileWidth, h.TileHeight))}.Intersect(s.Rect)
	if area.Empty() {
		return
	}

	size := h.Format.PixelSize()
	row := area.Dx() * size
	tileStride := h.TileWidth * size
	for y := area.Min.Y; y < area.Max.Y; y++ {
		src := (y-origin.Y)*tileStride + (area.Min.X-origin.X)*size
		copy(s.Pix[s.PixOffset(area.Min.X, y):], t.Pix[src:src+row])
	}
}
