package raster

import (
	"encoding/binary"
	"fmt"

	"github.com/tsawler/kra/internal/rle"
	"github.com/tsawler/kra/model"
)

// DecodeTile decompresses one tile of stream into an interleaved pixel
// buffer of h.TilePixels() pixels in the channel order of h.Format.
// Multi-byte channels keep their little-endian byte order.
func DecodeTile(stream []byte, h Header, t TileDescriptor) ([]byte, error) {
	depth := h.Format.Depth.Bytes()
	pixelSize := h.Format.PixelSize()
	pixels := h.TilePixels()
	if len(t.Planes) != h.Format.ChannelCount() {
		return nil, model.Errorf(model.ErrCodec, "tile has %d planes, %s has %d channels",
			len(t.Planes), h.Format, h.Format.ChannelCount()).WithOffset(t.Offset)
	}

	out := make([]byte, pixels*pixelSize)
	plane := make([]byte, pixels*depth)
	for c, p := range t.Planes {
		end := p.Offset + int64(p.EncodedSize)
		if p.Offset < 0 || end > int64(len(stream)) {
			return nil, model.Errorf(model.ErrTruncatedStream, "plane %d ends at %d, stream has %d bytes", c, end, len(stream)).
				WithOffset(p.Offset)
		}
		if p.RawSize != len(plane) {
			return nil, model.Errorf(model.ErrCodec, "plane %d declares %d bytes, tile holds %d", c, p.RawSize, len(plane)).
				WithOffset(p.Offset)
		}
		src := stream[p.Offset:end]

		switch p.Compression {
		case CompressionRaw:
			if len(src) != len(plane) {
				return nil, model.Errorf(model.ErrCodec, "raw plane %d stores %d of %d bytes", c, len(src), len(plane)).
					WithOffset(p.Offset)
			}
			copy(plane, src)
		case CompressionRLE:
			if err := rle.DecodeInto(plane, src); err != nil {
				return nil, model.Errorf(model.ErrCodec, "plane %d (%s)", c, h.Format.Channels()[c]).
					WithOffset(p.Offset).Wrap(err)
			}
		default:
			return nil, model.Errorf(model.ErrCodec, "plane %d has unknown compression %d", c, uint8(p.Compression)).
				WithOffset(p.Offset)
		}

		interleave(out, plane, c, depth, pixelSize)
	}
	return out, nil
}

// EncodeTile compresses an interleaved tile of h.TilePixels() pixels into a
// payload: the plane table followed by the plane bodies. A plane is stored
// raw when run-length coding does not make it smaller.
func EncodeTile(pix []byte, h Header) ([]byte, error) {
	depth := h.Format.Depth.Bytes()
	pixelSize := h.Format.PixelSize()
	channels := h.Format.ChannelCount()
	pixels := h.TilePixels()
	if len(pix) != pixels*pixelSize {
		return nil, fmt.Errorf("tile buffer has %d bytes, want %d", len(pix), pixels*pixelSize)
	}

	table := make([]byte, channels*planeEntrySize)
	bodies := make([][]byte, channels)
	plane := make([]byte, pixels*depth)
	for c := 0; c < channels; c++ {
		deinterleave(plane, pix, c, depth, pixelSize)

		scheme := CompressionRLE
		body := rle.Encode(plane)
		if len(body) >= len(plane) {
			scheme = CompressionRaw
			body = append([]byte(nil), plane...)
		}
		bodies[c] = body

		e := table[c*planeEntrySize:]
		e[0] = byte(scheme)
		binary.BigEndian.PutUint32(e[1:5], uint32(len(plane)))
		binary.BigEndian.PutUint32(e[5:9], uint32(len(body)))
	}

	out := table
	for _, b := range bodies {
		out = append(out, b...)
	}
	return out, nil
}

// interleave writes plane, channel c of every pixel, into the interleaved
// buffer dst.
func interleave(dst, plane []byte, c, depth, pixelSize int) {
	off := c * depth
	for p, i := 0, 0; i < len(plane); p, i = p+pixelSize, i+depth {
		copy(dst[p+off:p+off+depth], plane[i:i+depth])
	}
}

func deinterleave(plane, src []byte, c, depth, pixelSize int) {
	off := c * depth
	for p, i := 0, 0; i < len(plane); p, i = p+pixelSize, i+depth {
		copy(plane[i:i+depth], src[p+off:p+off+depth])
	}
}
