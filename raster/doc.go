// Package raster decodes and encodes the tiled layer pixel streams stored in
// a painting document.
//
// # Stream Layout
//
// A stream is a short text header followed by tile records:
//
//	VERSION 2
//	TILEWIDTH 64
//	TILEHEIGHT 64
//	PIXELSIZE 4
//	COLORSPACE RGBA
//	DATA 1
//	0,0,RLE,52
//	<52 payload bytes>
//
// A tile payload starts with a plane table, one entry per channel (a
// compression flag byte, then the raw and encoded sizes as big-endian
// uint32), followed by the plane bodies. A plane holds one channel of every
// pixel in the tile; planes are either raw or run-length coded.
//
// # Decoding
//
// [ParseDirectory] reads the header and tile descriptors, [DecodeTile]
// decompresses one tile, and [Assemble] stitches tiles into a [Surface].
// [Decoder] runs all three, decoding tiles in parallel:
//
//	dec := &raster.Decoder{Workers: 4}
//	s, err := dec.Decode(ctx, stream, model.FormatRGBA8, node.Bounds, nil)
//
// [Encode] is the inverse, writing a surface back as a stream.
package raster
