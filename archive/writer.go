package archive

import (
	"archive/zip"
	"fmt"
	"io"
)

// Writer assembles a document container. The mimetype member is written
// first and stored uncompressed; every other member is deflated.
type Writer struct {
	zw    *zip.Writer
	names map[string]bool
}

// NewWriter starts a container on w.
func NewWriter(w io.Writer) (*Writer, error) {
	zw := zip.NewWriter(w)
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: MimetypeMember, Method: zip.Store})
	if err != nil {
		return nil, fmt.Errorf("writing mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, MimeType); err != nil {
		return nil, fmt.Errorf("writing mimetype: %w", err)
	}
	return &Writer{zw: zw, names: map[string]bool{MimetypeMember: true}}, nil
}

// Create adds a member and returns a writer for its content. The content
// must be written before the next call to Create or Close.
func (w *Writer) Create(name string) (io.Writer, error) {
	if w.names[name] {
		return nil, fmt.Errorf("duplicate member %s", name)
	}
	w.names[name] = true
	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return nil, fmt.Errorf("creating member %s: %w", name, err)
	}
	return fw, nil
}

// WriteMember adds a member with the given content.
func (w *Writer) WriteMember(name string, data []byte) error {
	fw, err := w.Create(name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("writing member %s: %w", name, err)
	}
	return nil
}

// Close finishes the container. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.zw.Close()
}
