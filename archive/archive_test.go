package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, w.WriteMember(MaindocMember, []byte("<DOC/>")))
	require.NoError(t, w.WriteMember(LayerMember("Unnamed", "layer2"), []byte{1, 2, 3}))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterLayout(t *testing.T) {
	data := buildArchive(t)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.NotEmpty(t, zr.File)
	assert.Equal(t, MimetypeMember, zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
	assert.Equal(t, zip.Deflate, zr.File[1].Method)

	// The mimetype is readable at a fixed offset, as with other
	// OpenDocument-style containers.
	assert.Equal(t, []byte(MimeType), data[38:38+len(MimeType)])
}

func TestReaderMembers(t *testing.T) {
	data := buildArchive(t)
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"Unnamed/layers/layer2", MaindocMember, MimetypeMember}, r.Members())
	assert.True(t, r.Has(MaindocMember))
	assert.False(t, r.Has(PreviewMember))
	assert.Equal(t, MimetypeMember, r.FirstMember())

	mt, err := r.Mimetype()
	require.NoError(t, err)
	assert.Equal(t, MimeType, mt)

	content, err := r.ReadAll(LayerMember("Unnamed", "layer2"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, content)

	size, ok := r.Size(MaindocMember)
	require.True(t, ok)
	assert.Equal(t, int64(6), size)

	_, err = r.Open("nope")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestOpenFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "doc.kra")
	require.NoError(t, os.WriteFile(p, buildArchive(t), 0o644))

	r, err := Open(p)
	require.NoError(t, err)
	rc, err := r.Open(MaindocMember)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "<DOC/>", string(body))
	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.kra"))
	assert.Error(t, err)
}

func TestDuplicateMember(t *testing.T) {
	w, err := NewWriter(io.Discard)
	require.NoError(t, err)
	assert.Error(t, w.WriteMember(MimetypeMember, nil))
	require.NoError(t, w.WriteMember("a", nil))
	assert.Error(t, w.WriteMember("a", nil))
}

func TestMemberNames(t *testing.T) {
	assert.Equal(t, "img/layers/layer3", LayerMember("img", "layer3"))
	assert.Equal(t, "img/layers/layer3.defaultpixel", DefaultPixelMember("img", "layer3"))
	assert.Equal(t, "img/layers/mask1.pixelselection", PixelSelectionMember("img", "mask1"))
	assert.Equal(t, "img/layers/layer6.filterconfig", FilterConfigMember("img", "layer6"))
}
