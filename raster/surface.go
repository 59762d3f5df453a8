package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/tsawler/kra/model"
)

// ErrUnsupportedImage is returned by Surface.Image for pixel formats with no
// image.Image rendition.
var ErrUnsupportedImage = errors.New("raster: pixel format has no image rendition")

// Surface is a rectangle of interleaved pixels in one pixel format. Channels
// are in the format's storage order and multi-byte channels are
// little-endian. The pixel at (x, y) starts at Pix[(y-Rect.Min.Y)*Stride +
// (x-Rect.Min.X)*PixelSize].
type Surface struct {
	Rect   image.Rectangle
	Format model.PixelFormat
	Stride int
	Pix    []byte
}

// MaxSurfaceBytes bounds the pixel buffer of one surface.
const MaxSurfaceBytes = 1 << 34

// NewSurface returns a zero-filled surface covering r. It panics if
// CheckBounds rejects r.
func NewSurface(r image.Rectangle, f model.PixelFormat) *Surface {
	r = r.Canon()
	n, err := surfaceLen(r, f)
	if err != nil {
		panic("raster: NewSurface: " + err.Error())
	}
	return &Surface{
		Rect:   r,
		Format: f,
		Stride: r.Dx() * f.PixelSize(),
		Pix:    make([]byte, n),
	}
}

// CheckBounds reports whether a surface covering r in format f can be
// allocated: its dimensions must not overflow and its buffer must not
// exceed MaxSurfaceBytes.
func CheckBounds(r image.Rectangle, f model.PixelFormat) error {
	_, err := surfaceLen(r.Canon(), f)
	return err
}

func surfaceLen(r image.Rectangle, f model.PixelFormat) (int, error) {
	ps := int64(f.PixelSize())
	if ps <= 0 {
		return 0, model.Errorf(model.ErrPixelFormatMismatch, "format %s has no pixel size", f)
	}
	w, h := int64(r.Dx()), int64(r.Dy())
	if w < 0 || h < 0 {
		return 0, model.Errorf(model.ErrStructural, "surface %v has overflowing dimensions", r)
	}
	if w == 0 || h == 0 {
		return 0, nil
	}
	if w > MaxSurfaceBytes/ps || h > MaxSurfaceBytes/(w*ps) {
		return 0, model.Errorf(model.ErrStructural, "surface %v of %s exceeds %d bytes", r, f, int64(MaxSurfaceBytes))
	}
	n := w * h * ps
	if n > int64(math.MaxInt) {
		return 0, model.Errorf(model.ErrStructural, "surface %v of %s does not fit in memory", r, f)
	}
	return int(n), nil
}

// Bounds returns the surface rectangle.
func (s *Surface) Bounds() image.Rectangle { return s.Rect }

// PixelSize returns the bytes per pixel.
func (s *Surface) PixelSize() int { return s.Format.PixelSize() }

// PixOffset returns the index of the first byte of the pixel at (x, y).
func (s *Surface) PixOffset(x, y int) int {
	return (y-s.Rect.Min.Y)*s.Stride + (x-s.Rect.Min.X)*s.PixelSize()
}

// Pixel returns the bytes of the pixel at (x, y), or nil outside the
// surface. The slice aliases Pix.
func (s *Surface) Pixel(x, y int) []byte {
	if !(image.Point{x, y}.In(s.Rect)) {
		return nil
	}
	i := s.PixOffset(x, y)
	return s.Pix[i : i+s.PixelSize() : i+s.PixelSize()]
}

// SetPixel copies px into the pixel at (x, y). Points outside the surface
// are ignored.
func (s *Surface) SetPixel(x, y int, px []byte) {
	if dst := s.Pixel(x, y); dst != nil {
		copy(dst, px)
	}
}

// Fill sets every pixel to px.
func (s *Surface) Fill(px []byte) {
	size := s.PixelSize()
	if len(px) != size || len(s.Pix) == 0 {
		return
	}
	copy(s.Pix, px)
	for filled := size; filled < len(s.Pix); filled *= 2 {
		copy(s.Pix[filled:], s.Pix[:filled])
	}
}

// Value returns channel c of the pixel at (x, y) normalized to [0, 1] for
// integer depths. Float channels are returned unchanged.
func (s *Surface) Value(x, y, c int) float64 {
	px := s.Pixel(x, y)
	if px == nil || c < 0 || c >= s.Format.ChannelCount() {
		return 0
	}
	d := s.Format.Depth.Bytes()
	return channelValue(px[c*d:c*d+d], s.Format.Depth)
}

// Alpha returns the normalized alpha of the pixel at (x, y).
func (s *Surface) Alpha(x, y int) float64 {
	return s.Value(x, y, s.Format.AlphaIndex())
}

// Equal reports whether two surfaces hold the same pixels over the same
// rectangle.
func (s *Surface) Equal(o *Surface) bool {
	if s.Rect != o.Rect || s.Format != o.Format {
		return false
	}
	row := s.Rect.Dx() * s.PixelSize()
	for y := s.Rect.Min.Y; y < s.Rect.Max.Y; y++ {
		a := s.Pix[s.PixOffset(s.Rect.Min.X, y):]
		b := o.Pix[o.PixOffset(o.Rect.Min.X, y):]
		if string(a[:row]) != string(b[:row]) {
			return false
		}
	}
	return true
}

func channelValue(b []byte, d model.Depth) float64 {
	switch d {
	case model.DepthU8:
		return float64(b[0]) / 0xff
	case model.DepthU16:
		return float64(binary.LittleEndian.Uint16(b)) / 0xffff
	case model.DepthF16:
		return float64(halfToFloat(binary.LittleEndian.Uint16(b)))
	case model.DepthF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

// halfToFloat converts an IEEE 754 binary16 value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// Subnormal: normalize into a float32 exponent.
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
}

func unit16(v float64) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}

// Image returns the surface as an image.Image: *image.NRGBA for 8-bit RGB,
// Gray and CMYK, *image.NRGBA64 for 16-bit and float RGB and Gray, and
// *image.Alpha for alpha masks. Float channels are clamped to [0, 1].
func (s *Surface) Image() (image.Image, error) {
	f := s.Format
	switch {
	case f.Model == model.ColorModelAlpha && f.Depth == model.DepthU8:
		img := image.NewAlpha(s.Rect)
		for y := s.Rect.Min.Y; y < s.Rect.Max.Y; y++ {
			copy(img.Pix[img.PixOffset(s.Rect.Min.X, y):], s.Pix[s.PixOffset(s.Rect.Min.X, y):][:s.Rect.Dx()])
		}
		return img, nil

	case f.Model == model.ColorModelRGB && f.Depth == model.DepthU8:
		img := image.NewNRGBA(s.Rect)
		s.each(func(x, y int, px []byte) {
			i := img.PixOffset(x, y)
			img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = px[2], px[1], px[0], px[3]
		})
		return img, nil

	case f.Model == model.ColorModelGray && f.Depth == model.DepthU8:
		img := image.NewNRGBA(s.Rect)
		s.each(func(x, y int, px []byte) {
			i := img.PixOffset(x, y)
			img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = px[0], px[0], px[0], px[1]
		})
		return img, nil

	case f.Model == model.ColorModelCMYK && f.Depth == model.DepthU8:
		img := image.NewNRGBA(s.Rect)
		s.each(func(x, y int, px []byte) {
			r, g, b := color.CMYKToRGB(px[0], px[1], px[2], px[3])
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: px[4]})
		})
		return img, nil

	case f.Model == model.ColorModelRGB || f.Model == model.ColorModelGray:
		if f.Depth == model.DepthUnknown || f.Depth == model.DepthU8 {
			break
		}
		img := image.NewNRGBA64(s.Rect)
		d := f.Depth.Bytes()
		ch := func(px []byte, c int) uint16 { return unit16(channelValue(px[c*d:c*d+d], f.Depth)) }
		s.each(func(x, y int, px []byte) {
			var c color.NRGBA64
			switch {
			case f.Model == model.ColorModelGray:
				g := ch(px, 0)
				c = color.NRGBA64{R: g, G: g, B: g, A: ch(px, 1)}
			case f.Depth == model.DepthU16:
				c = color.NRGBA64{R: ch(px, 2), G: ch(px, 1), B: ch(px, 0), A: ch(px, 3)}
			default:
				c = color.NRGBA64{R: ch(px, 0), G: ch(px, 1), B: ch(px, 2), A: ch(px, 3)}
			}
			img.SetNRGBA64(x, y, c)
		})
		return img, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, f)
}

func (s *Surface) each(fn func(x, y int, px []byte)) {
	size := s.PixelSize()
	for y := s.Rect.Min.Y; y < s.Rect.Max.Y; y++ {
		i := s.PixOffset(s.Rect.Min.X, y)
		for x := s.Rect.Min.X; x < s.Rect.Max.X; x++ {
			fn(x, y, s.Pix[i:i+size])
			i += size
		}
	}
}
