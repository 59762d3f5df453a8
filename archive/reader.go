// Package archive gives named access to the members of a painting document
// container and assembles new containers.
//
// A document is a ZIP file. Its first member, stored uncompressed, is
// "mimetype"; the main document markup, document information and two PNG
// renderings sit at the top level, and per-layer data is kept under
// "<image name>/layers/".
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Well-known members.
const (
	MimeType = "application/x-krita"

	MimetypeMember    = "mimetype"
	MaindocMember     = "maindoc.xml"
	DocInfoMember     = "documentinfo.xml"
	MergedImageMember = "mergedimage.png"
	PreviewMember     = "preview.png"
)

// Suffixes of per-layer members.
const (
	DefaultPixelSuffix   = ".defaultpixel"
	PixelSelectionSuffix = ".pixelselection"
	FilterConfigSuffix   = ".filterconfig"
)

// ErrMemberNotFound is returned when a named member does not exist.
var ErrMemberNotFound = errors.New("archive: member not found")

// LayerMember returns the member holding a node's raster data.
func LayerMember(image, filename string) string {
	return path.Join(image, "layers", filename)
}

// DefaultPixelMember returns the member holding a layer's default pixel.
func DefaultPixelMember(image, filename string) string {
	return LayerMember(image, filename) + DefaultPixelSuffix
}

// PixelSelectionMember returns the member holding a mask's selection data.
func PixelSelectionMember(image, filename string) string {
	return LayerMember(image, filename) + PixelSelectionSuffix
}

// FilterConfigMember returns the member holding a filter configuration.
func FilterConfigMember(image, filename string) string {
	return LayerMember(image, filename) + FilterConfigSuffix
}

// Reader provides access to the members of a document container.
type Reader struct {
	zr     *zip.Reader
	closer io.Closer
	files  map[string]*zip.File
}

// Open opens a document file for reading.
func Open(filename string) (*Reader, error) {
	zrc, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}
	r := newReader(&zrc.Reader)
	r.closer = zrc
	return r, nil
}

// NewReader reads a document container of the given size from ra.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}
	return newReader(zr), nil
}

func newReader(zr *zip.Reader) *Reader {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[strings.TrimPrefix(f.Name, "/")] = f
	}
	return &Reader{zr: zr, files: files}
}

// Close releases resources associated with the Reader.
func (r *Reader) Close() error {
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// Has reports whether the member exists.
func (r *Reader) Has(name string) bool {
	_, ok := r.files[name]
	return ok
}

// Members returns the member names in sorted order.
func (r *Reader) Members() []string {
	names := make([]string, 0, len(r.files))
	for name, f := range r.files {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a member for reading.
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening member %s: %w", name, err)
	}
	return rc, nil
}

// ReadAll returns the content of a member.
func (r *Reader) ReadAll(name string) ([]byte, error) {
	rc, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading member %s: %w", name, err)
	}
	return data, nil
}

// Size returns the uncompressed size of a member.
func (r *Reader) Size(name string) (int64, bool) {
	f, ok := r.files[name]
	if !ok {
		return 0, false
	}
	return int64(f.UncompressedSize64), true
}

// Mimetype returns the content of the mimetype member with surrounding
// whitespace removed.
func (r *Reader) Mimetype() (string, error) {
	data, err := r.ReadAll(MimetypeMember)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// FirstMember returns the name of the first member in the central
// directory, which is where the mimetype is expected.
func (r *Reader) FirstMember() string {
	if len(r.zr.File) == 0 {
		return ""
	}
	return r.zr.File[0].Name
}
