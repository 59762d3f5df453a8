package model

import "fmt"

// ColorModel identifies the channel layout of a pixel format.
type ColorModel int

const (
	ColorModelUnknown ColorModel = iota
	ColorModelRGB
	ColorModelGray
	ColorModelCMYK
	ColorModelLab
	ColorModelXYZ
	ColorModelYCbCr
	ColorModelAlpha
)

func (m ColorModel) String() string {
	switch m {
	case ColorModelRGB:
		return "RGB"
	case ColorModelGray:
		return "Gray"
	case ColorModelCMYK:
		return "CMYK"
	case ColorModelLab:
		return "Lab"
	case ColorModelXYZ:
		return "XYZ"
	case ColorModelYCbCr:
		return "YCbCr"
	case ColorModelAlpha:
		return "Alpha"
	default:
		return "Unknown"
	}
}

// Depth is the storage type of one channel.
type Depth int

const (
	DepthUnknown Depth = iota
	DepthU8
	DepthU16
	DepthF16
	DepthF32
)

func (d Depth) String() string {
	switch d {
	case DepthU8:
		return "U8"
	case DepthU16:
		return "U16"
	case DepthF16:
		return "F16"
	case DepthF32:
		return "F32"
	default:
		return "Unknown"
	}
}

// Bytes returns the number of bytes one channel occupies.
func (d Depth) Bytes() int {
	switch d {
	case DepthU8:
		return 1
	case DepthU16, DepthF16:
		return 2
	case DepthF32:
		return 4
	default:
		return 0
	}
}

// PixelFormat is a color model at a bit depth, identified in documents by a
// colorspace id such as "RGBA" or "GRAYAU16".
type PixelFormat struct {
	Model ColorModel
	Depth Depth
}

var (
	FormatRGBA8  = PixelFormat{ColorModelRGB, DepthU8}
	FormatRGBA16 = PixelFormat{ColorModelRGB, DepthU16}
	FormatAlpha8 = PixelFormat{ColorModelAlpha, DepthU8}
)

// colorSpaceIDs maps colorspace ids as written by the painting application
// to pixel formats. Legacy spellings share an entry with their modern id.
var colorSpaceIDs = map[string]PixelFormat{
	"RGBA":      {ColorModelRGB, DepthU8},
	"RGBA16":    {ColorModelRGB, DepthU16},
	"RGBAF16":   {ColorModelRGB, DepthF16},
	"RGBAF32":   {ColorModelRGB, DepthF32},
	"GRAYA":     {ColorModelGray, DepthU8},
	"GRAYAU16":  {ColorModelGray, DepthU16},
	"GRAYA16":   {ColorModelGray, DepthU16},
	"GRAYAF16":  {ColorModelGray, DepthF16},
	"GRAYAF32":  {ColorModelGray, DepthF32},
	"CMYK":      {ColorModelCMYK, DepthU8},
	"CMYKA":     {ColorModelCMYK, DepthU8},
	"CMYKAU16":  {ColorModelCMYK, DepthU16},
	"CMYKA16":   {ColorModelCMYK, DepthU16},
	"CMYKAF32":  {ColorModelCMYK, DepthF32},
	"LABAU8":    {ColorModelLab, DepthU8},
	"LABA":      {ColorModelLab, DepthU16},
	"LABAF32":   {ColorModelLab, DepthF32},
	"XYZAU8":    {ColorModelXYZ, DepthU8},
	"XYZA16":    {ColorModelXYZ, DepthU16},
	"XYZAF16":   {ColorModelXYZ, DepthF16},
	"XYZAF32":   {ColorModelXYZ, DepthF32},
	"YCbCrAU8":  {ColorModelYCbCr, DepthU8},
	"YCbCrAU16": {ColorModelYCbCr, DepthU16},
	"YCbCrAF32": {ColorModelYCbCr, DepthF32},
	"ALPHA":     {ColorModelAlpha, DepthU8},
}

// ParseColorSpace returns the pixel format named by a colorspace id.
func ParseColorSpace(id string) (PixelFormat, error) {
	f, ok := colorSpaceIDs[id]
	if !ok {
		return PixelFormat{}, fmt.Errorf("unknown colorspace %q", id)
	}
	return f, nil
}

// ID returns the canonical colorspace id of the format.
func (f PixelFormat) ID() string {
	switch f.Model {
	case ColorModelRGB:
		return pick(f.Depth, "RGBA", "RGBA16", "RGBAF16", "RGBAF32")
	case ColorModelGray:
		return pick(f.Depth, "GRAYA", "GRAYAU16", "GRAYAF16", "GRAYAF32")
	case ColorModelCMYK:
		return pick(f.Depth, "CMYK", "CMYKAU16", "", "CMYKAF32")
	case ColorModelLab:
		return pick(f.Depth, "LABAU8", "LABA", "", "LABAF32")
	case ColorModelXYZ:
		return pick(f.Depth, "XYZAU8", "XYZA16", "XYZAF16", "XYZAF32")
	case ColorModelYCbCr:
		return pick(f.Depth, "YCbCrAU8", "YCbCrAU16", "", "YCbCrAF32")
	case ColorModelAlpha:
		return pick(f.Depth, "ALPHA", "", "", "")
	}
	return ""
}

func pick(d Depth, u8, u16, f16, f32 string) string {
	switch d {
	case DepthU8:
		return u8
	case DepthU16:
		return u16
	case DepthF16:
		return f16
	case DepthF32:
		return f32
	}
	return ""
}

// Valid reports whether the format has a colorspace id.
func (f PixelFormat) Valid() bool {
	return f.ID() != ""
}

func (f PixelFormat) String() string {
	if id := f.ID(); id != "" {
		return id
	}
	return fmt.Sprintf("%s/%s", f.Model, f.Depth)
}

// Channels returns the channel names in storage order. The 8 and 16 bit RGB
// formats store blue first; the float formats store red first.
func (f PixelFormat) Channels() []string {
	switch f.Model {
	case ColorModelRGB:
		if f.Depth == DepthU8 || f.Depth == DepthU16 {
			return []string{"B", "G", "R", "A"}
		}
		return []string{"R", "G", "B", "A"}
	case ColorModelGray:
		return []string{"G", "A"}
	case ColorModelCMYK:
		return []string{"C", "M", "Y", "K", "A"}
	case ColorModelLab:
		return []string{"L", "a", "b", "A"}
	case ColorModelXYZ:
		return []string{"X", "Y", "Z", "A"}
	case ColorModelYCbCr:
		return []string{"Y", "Cb", "Cr", "A"}
	case ColorModelAlpha:
		return []string{"A"}
	}
	return nil
}

// ChannelCount returns the number of channels per pixel.
func (f PixelFormat) ChannelCount() int {
	return len(f.Channels())
}

// PixelSize returns the number of bytes per pixel.
func (f PixelFormat) PixelSize() int {
	return f.ChannelCount() * f.Depth.Bytes()
}

// AlphaIndex returns the storage index of the alpha channel. Every supported
// format stores alpha last.
func (f PixelFormat) AlphaIndex() int {
	return f.ChannelCount() - 1
}
