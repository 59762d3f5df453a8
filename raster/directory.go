package raster

import (
	"bytes"
	"context"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/tsawler/kra/model"
)

// Version is the only raster stream version understood by the parser.
const Version = 2

// DefaultMaxTiles bounds the tile count a stream may declare.
const DefaultMaxTiles = 1 << 20

// MaxTileSize bounds the width and height of a tile. Krita writes 64.
const MaxTileSize = 4096

// planeEntrySize is the size of one plane table entry: flag, raw size,
// encoded size.
const planeEntrySize = 1 + 4 + 4

// Compression is the storage scheme of one plane.
type Compression uint8

const (
	CompressionRaw Compression = 0
	CompressionRLE Compression = 1
)

func (c Compression) String() string {
	switch c {
	case CompressionRaw:
		return "raw"
	case CompressionRLE:
		return "rle"
	default:
		return "compression(" + strconv.Itoa(int(c)) + ")"
	}
}

// Valid reports whether c is a known scheme.
func (c Compression) Valid() bool {
	return c == CompressionRaw || c == CompressionRLE
}

// Header is the text header at the start of a raster stream.
type Header struct {
	Version    int
	TileWidth  int
	TileHeight int
	PixelSize  int
	ColorSpace string // empty when the stream does not name one
	Format     model.PixelFormat
	TileCount  int
}

// TilePixels returns the number of pixels in one tile.
func (h Header) TilePixels() int {
	return h.TileWidth * h.TileHeight
}

// PlaneInfo locates one channel plane of a tile payload. Offset is relative
// to the start of the stream.
type PlaneInfo struct {
	Compression Compression
	RawSize     int
	EncodedSize int
	Offset      int64
}

// TileDescriptor locates one tile in a raster stream. X and Y are pixel
// offsets from the layer origin; Col and Row are the same position in tile
// units.
type TileDescriptor struct {
	Col, Row int
	X, Y     int
	Offset   int64 // start of the payload, plane table included
	Length   int
	Planes   []PlaneInfo
}

// Directory is a parsed raster stream header and its tiles in stream order.
type Directory struct {
	Header
	Tiles []TileDescriptor
}

// ParseDirectory reads the header and tile descriptors of a raster stream
// without decompressing any pixels. expect is the pixel format of the node
// the stream belongs to. maxTiles <= 0 uses DefaultMaxTiles.
func ParseDirectory(ctx context.Context, data []byte, expect model.PixelFormat, maxTiles int) (*Directory, error) {
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	s := &scanner{data: data}

	h, err := parseHeader(s, expect)
	if err != nil {
		return nil, err
	}
	if h.TileCount > maxTiles {
		return nil, model.Errorf(model.ErrStructural, "stream declares %d tiles, limit is %d", h.TileCount, maxTiles).
			WithOffset(s.pos)
	}

	dir := &Directory{Header: h, Tiles: make([]TileDescriptor, 0, h.TileCount)}
	for i := 0; i < h.TileCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := parseTile(s, h)
		if err != nil {
			return nil, err
		}
		dir.Tiles = append(dir.Tiles, t)
	}
	return dir, nil
}

func parseHeader(s *scanner, expect model.PixelFormat) (Header, error) {
	h := Header{Format: expect}

	start := s.pos
	line, err := s.line()
	if err != nil {
		return h, err
	}
	key, val := splitField(line)
	if key != "VERSION" {
		return h, model.NewError(model.ErrStructural, "stream does not start with VERSION").WithOffset(start)
	}
	if h.Version, err = fieldInt(key, val, start); err != nil {
		return h, err
	}
	if h.Version != Version {
		return h, model.Errorf(model.ErrStructural, "unsupported stream version %d", h.Version).WithOffset(start)
	}

	seen := map[string]bool{}
	for {
		start = s.pos
		line, err := s.line()
		if err != nil {
			return h, err
		}
		key, val := splitField(line)
		if seen[key] {
			return h, model.Errorf(model.ErrStructural, "duplicate header field %s", key).WithOffset(start)
		}
		seen[key] = true

		switch key {
		case "TILEWIDTH":
			h.TileWidth, err = fieldInt(key, val, start)
		case "TILEHEIGHT":
			h.TileHeight, err = fieldInt(key, val, start)
		case "PIXELSIZE":
			h.PixelSize, err = fieldInt(key, val, start)
		case "COLORSPACE":
			h.ColorSpace = val
		case "DATA":
			h.TileCount, err = fieldInt(key, val, start)
		default:
			err = model.Errorf(model.ErrStructural, "unknown header field %q", key).WithOffset(start)
		}
		if err != nil {
			return h, err
		}
		if key == "DATA" {
			break
		}
	}

	for _, key := range []string{"TILEWIDTH", "TILEHEIGHT", "PIXELSIZE"} {
		if !seen[key] {
			return h, model.Errorf(model.ErrStructural, "header has no %s field", key).WithOffset(start)
		}
	}
	if h.TileWidth <= 0 || h.TileHeight <= 0 || h.TileWidth > MaxTileSize || h.TileHeight > MaxTileSize {
		return h, model.Errorf(model.ErrStructural, "invalid tile size %dx%d", h.TileWidth, h.TileHeight)
	}
	if h.TileCount < 0 {
		return h, model.Errorf(model.ErrStructural, "negative tile count %d", h.TileCount).WithOffset(start)
	}

	if h.PixelSize != expect.PixelSize() {
		return h, model.Errorf(model.ErrPixelFormatMismatch,
			"stream pixel size %d, %s expects %d", h.PixelSize, expect, expect.PixelSize())
	}
	if h.ColorSpace != "" {
		f, err := model.ParseColorSpace(h.ColorSpace)
		if err != nil {
			return h, model.NewError(model.ErrPixelFormatMismatch, "stream colorspace is unknown").Wrap(err)
		}
		if f != expect {
			return h, model.Errorf(model.ErrPixelFormatMismatch, "stream colorspace %s, expected %s", f, expect)
		}
	}
	return h, nil
}

func parseTile(s *scanner, h Header) (TileDescriptor, error) {
	var t TileDescriptor

	start := s.pos
	line, err := s.line()
	if err != nil {
		return t, err
	}
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return t, model.Errorf(model.ErrStructural, "malformed tile header %q", line).WithOffset(start)
	}
	x, errX := strconv.Atoi(parts[0])
	y, errY := strconv.Atoi(parts[1])
	length, errL := strconv.Atoi(parts[3])
	if errX != nil || errY != nil || errL != nil || length < 0 {
		return t, model.Errorf(model.ErrStructural, "malformed tile header %q", line).WithOffset(start)
	}
	if parts[2] != "RLE" {
		return t, model.Errorf(model.ErrCodec, "unknown tile compression %q", parts[2]).WithOffset(start)
	}
	if x%h.TileWidth != 0 || y%h.TileHeight != 0 {
		return t, model.Errorf(model.ErrStructural, "tile at %d,%d is not aligned to %dx%d", x, y, h.TileWidth, h.TileHeight).
			WithOffset(start)
	}

	payload, err := s.take(length)
	if err != nil {
		return t, err
	}
	t = TileDescriptor{
		Col:    floorDiv(x, h.TileWidth),
		Row:    floorDiv(y, h.TileHeight),
		X:      x,
		Y:      y,
		Offset: s.pos - int64(length),
		Length: length,
	}
	t.Planes, err = parsePlanes(payload, t.Offset, h)
	if err != nil {
		return t, err
	}
	return t, nil
}

// parsePlanes reads the plane table at the start of a tile payload.
func parsePlanes(payload []byte, base int64, h Header) ([]PlaneInfo, error) {
	channels := h.Format.ChannelCount()
	planeSize := h.TilePixels() * h.Format.Depth.Bytes()
	table := channels * planeEntrySize
	if len(payload) < table {
		return nil, model.Errorf(model.ErrCodec, "payload of %d bytes cannot hold a %d plane table", len(payload), channels).
			WithOffset(base)
	}

	planes := make([]PlaneInfo, channels)
	off := base + int64(table)
	total := table
	for i := range planes {
		e := payload[i*planeEntrySize:]
		p := PlaneInfo{
			Compression: Compression(e[0]),
			RawSize:     int(binary.BigEndian.Uint32(e[1:5])),
			EncodedSize: int(binary.BigEndian.Uint32(e[5:9])),
			Offset:      off,
		}
		entry := base + int64(i*planeEntrySize)
		switch {
		case !p.Compression.Valid():
			return nil, model.Errorf(model.ErrCodec, "plane %d has unknown compression %d", i, e[0]).WithOffset(entry)
		case p.RawSize != planeSize:
			return nil, model.Errorf(model.ErrCodec, "plane %d declares %d bytes, tile holds %d", i, p.RawSize, planeSize).
				WithOffset(entry)
		case p.Compression == CompressionRaw && p.EncodedSize != p.RawSize:
			return nil, model.Errorf(model.ErrCodec, "raw plane %d stores %d of %d bytes", i, p.EncodedSize, p.RawSize).
				WithOffset(entry)
		case p.EncodedSize > len(payload)-total:
			return nil, model.Errorf(model.ErrCodec, "plane %d overruns the tile payload", i).WithOffset(entry)
		}
		planes[i] = p
		off += int64(p.EncodedSize)
		total += p.EncodedSize
	}
	if total != len(payload) {
		return nil, model.Errorf(model.ErrCodec, "planes use %d of %d payload bytes", total, len(payload)).WithOffset(base)
	}
	return planes, nil
}

// scanner walks a raster stream, tracking the byte offset for errors.
type scanner struct {
	data []byte
	pos  int64
}

func (s *scanner) line() (string, error) {
	rest := s.data[s.pos:]
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		return "", model.NewError(model.ErrTruncatedStream, "stream ends inside a header line").WithOffset(s.pos)
	}
	s.pos += int64(i + 1)
	return strings.TrimSuffix(string(rest[:i]), "\r"), nil
}

func (s *scanner) take(n int) ([]byte, error) {
	if int64(n) > int64(len(s.data))-s.pos {
		return nil, model.Errorf(model.ErrTruncatedStream, "need %d bytes, %d remain", n, int64(len(s.data))-s.pos).
			WithOffset(s.pos)
	}
	b := s.data[s.pos : s.pos+int64(n)]
	s.pos += int64(n)
	return b, nil
}

func splitField(line string) (key, val string) {
	key, val, _ = strings.Cut(line, " ")
	return key, strings.TrimSpace(val)
}

func fieldInt(key, val string, off int64) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, model.Errorf(model.ErrStructural, "header field %s is not an integer: %q", key, val).WithOffset(off)
	}
	return n, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
