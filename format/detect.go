// Package format provides painting document format detection.
package format

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

// Format represents a layered painting document format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// KRA indicates a Krita document (.kra).
	KRA
	// KRZ indicates a Krita archival document (.krz), a KRA without the
	// merged image and preview.
	KRZ
	// ORA indicates an OpenRaster document (.ora).
	ORA
)

// Mimetypes stored in the leading mimetype member of each container.
const (
	KritaMimetype      = "application/x-krita"
	OpenRasterMimetype = "image/openraster"
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case KRA:
		return "KRA"
	case KRZ:
		return "KRZ"
	case ORA:
		return "ORA"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case KRA:
		return ".kra"
	case KRZ:
		return ".krz"
	case ORA:
		return ".ora"
	default:
		return ""
	}
}

// Krita reports whether documents of this format can be opened by this
// module.
func (f Format) Krita() bool {
	return f == KRA || f == KRZ
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".kra":
		return KRA
	case ".krz":
		return KRZ
	case ".ora":
		return ORA
	default:
		return Unknown
	}
}

// zipMagic is the local file header signature: PK\x03\x04.
var zipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// DetectFromMagic checks the leading bytes of a file. Both formats are ZIP
// containers that store an uncompressed mimetype member first, so the
// mimetype text appears at a fixed offset of a well-formed file.
// Returns Unknown if the format cannot be determined from magic bytes alone.
func DetectFromMagic(data []byte) Format {
	if len(data) < 4 || !bytes.Equal(data[:4], zipMagic) {
		return Unknown
	}
	// Local header: 30 fixed bytes, then the 8 byte name "mimetype".
	const body = 30 + len("mimetype")
	if len(data) < body || string(data[30:body]) != "mimetype" {
		return Unknown
	}
	return fromMimetype(string(data[body:]))
}

func fromMimetype(m string) Format {
	switch {
	case strings.HasPrefix(m, KritaMimetype):
		return KRA
	case strings.HasPrefix(m, OpenRasterMimetype):
		return ORA
	default:
		return Unknown
	}
}

// DetectFromReader inspects the content to determine format. This is more
// reliable than extension-based detection and can tell KRA from KRZ.
func DetectFromReader(r io.ReaderAt, size int64) (Format, error) {
	magic := make([]byte, 4)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	if n < 4 || !bytes.Equal(magic, zipMagic) {
		return Unknown, nil
	}
	return detectZIPFormat(r, size)
}

// detectZIPFormat reads the mimetype member of a ZIP container.
func detectZIPFormat(r io.ReaderAt, size int64) (Format, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Unknown, err
	}

	var format Format
	merged := false
	for _, f := range zr.File {
		switch f.Name {
		case "mimetype":
			rc, err := f.Open()
			if err != nil {
				continue
			}
			data := make([]byte, 64)
			n, _ := io.ReadFull(rc, data)
			rc.Close()
			format = fromMimetype(strings.TrimSpace(string(data[:n])))
		case "mergedimage.png":
			merged = true
		}
	}

	if format == KRA && !merged {
		return KRZ, nil
	}
	return format, nil
}
