package kra

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tsawler/kra/archive"
	"github.com/tsawler/kra/model"
	"github.com/tsawler/kra/raster"
)

// ============================================================================
// Fixtures
// ============================================================================

var (
	levelsID = uuid.MustParse("4eaf905c-7d4a-4adf-9e9b-5b6c7d8e9fa0")
	groupID  = uuid.MustParse("0a6b5c1e-3f0c-4c9b-9a57-1d2e3f4a5b6c")
	inkID    = uuid.MustParse("1b7c6d2f-4a1d-4dac-8b68-2e3f4a5b6c7d")
	fadeID   = uuid.MustParse("2c8d7e3a-5b2e-4ebd-9c79-3f4a5b6c7d8e")
)

const fixtureMaindoc = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE DOC PUBLIC '-//KDE//DTD krita 2.0//EN' 'http://www.calligra.org/DTD/krita-2.0.dtd'>
<DOC xmlns="http://www.calligra.org/DTD/krita" kritaVersion="5.2.2" syntaxVersion="2.0" editor="Krita">
 <IMAGE name="Sketch" mime="application/x-kra" colorspacename="RGBA" width="100" height="70" x-res="72" y-res="72" activelayer="Ink">
  <layers>
   <layer name="Levels" uuid="{4eaf905c-7d4a-4adf-9e9b-5b6c7d8e9fa0}" filename="layer3" nodetype="adjustmentlayer" filtername="levels" filterversion="2"/>
   <layer name="Group" uuid="{0a6b5c1e-3f0c-4c9b-9a57-1d2e3f4a5b6c}" filename="layer4" nodetype="grouplayer">
    <layers>
     <layer name="Ink" uuid="{1b7c6d2f-4a1d-4dac-8b68-2e3f4a5b6c7d}" filename="layer2" nodetype="paintlayer" x="5" y="5" colorspacename="RGBA">
      <masks>
       <mask name="Fade" uuid="{2c8d7e3a-5b2e-4ebd-9c79-3f4a5b6c7d8e}" filename="mask1" nodetype="transparencymask"/>
      </masks>
     </layer>
    </layers>
   </layer>
  </layers>
 </IMAGE>
</DOC>
`

const fixtureDocInfo = `<?xml version="1.0" encoding="UTF-8"?>
<document-info xmlns="http://www.calligra.org/DTD/document-info">
 <about>
  <title>Sketch</title>
  <creation-date>2024-05-01T12:00:00</creation-date>
  <date>2024-05-02T08:30:00</date>
 </about>
 <author>
  <full-name>A. Painter</full-name>
 </author>
</document-info>
`

var (
	white   = []byte{255, 255, 255, 255}
	red     = []byte{0, 0, 255, 255}
	levels  = []byte(`<params version="2"><param name="mode">0</param></params>`)
	inkRect = image.Rect(5, 5, 105, 75)
)

// inkSurface is a white layer with a red block crossing a tile boundary.
func inkSurface() *raster.Surface {
	s := raster.NewSurface(inkRect, model.FormatRGBA8)
	s.Fill(white)
	for y := 50; y < 75; y++ {
		for x := 60; x < 80; x++ {
			s.SetPixel(x, y, red)
		}
	}
	return s
}

// fadeSurface is an alpha mask fading left to right.
func fadeSurface() *raster.Surface {
	s := raster.NewSurface(image.Rect(0, 0, 100, 70), model.FormatAlpha8)
	for y := 0; y < 70; y++ {
		for x := 0; x < 100; x++ {
			s.SetPixel(x, y, []byte{byte(x * 255 / 99)})
		}
	}
	return s
}

func pngBytes(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fixture builds a complete document in memory. Members in override
// replace or add to the defaults; a nil value removes the member.
func fixture(t *testing.T, override map[string][]byte) []byte {
	t.Helper()

	ink, err := raster.Encode(inkSurface(), 64, 64, white)
	require.NoError(t, err)
	fade, err := raster.Encode(fadeSurface(), 64, 64, nil)
	require.NoError(t, err)

	members := map[string][]byte{
		archive.MaindocMember:                           []byte(fixtureMaindoc),
		archive.DocInfoMember:                           []byte(fixtureDocInfo),
		archive.LayerMember("Sketch", "layer2"):         ink,
		archive.DefaultPixelMember("Sketch", "layer2"):  white,
		archive.PixelSelectionMember("Sketch", "mask1"): fade,
		archive.FilterConfigMember("Sketch", "layer3"):  levels,
		archive.MergedImageMember:                       pngBytes(t, 100, 70, color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
		archive.PreviewMember:                           pngBytes(t, 10, 7, color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
	}
	for name, data := range override {
		if data == nil {
			delete(members, name)
			continue
		}
		members[name] = data
	}

	var buf bytes.Buffer
	aw, err := archive.NewWriter(&buf)
	require.NoError(t, err)
	for name, data := range members {
		require.NoError(t, aw.WriteMember(name, data))
	}
	require.NoError(t, aw.Close())
	return buf.Bytes()
}

func openFixture(t *testing.T, data []byte, opts ...Option) *File {
	t.Helper()
	f, err := OpenReader(bytes.NewReader(data), int64(len(data)), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// ============================================================================
// Open Tests
// ============================================================================

func TestOpenReader(t *testing.T) {
	f := openFixture(t, fixture(t, nil))

	doc := f.Document()
	meta := doc.Metadata()
	assert.Equal(t, "Sketch", meta.Name)
	assert.Equal(t, model.FormatRGBA8, meta.Format)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), meta.Created)
	assert.Equal(t, time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC), meta.Modified)
	assert.Equal(t, 4, doc.Len())

	active, ok := doc.ActiveLayer()
	require.True(t, ok)
	assert.Equal(t, inkID, active.ID)

	require.NotNil(t, f.Info())
	assert.Equal(t, "A. Painter", f.Info().Author.FullName)
	assert.Contains(t, f.Members(), archive.MaindocMember)

	assert.Equal(t, []uuid.UUID{inkID, fadeID}, f.RasterNodes())
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sketch.kra")
	require.NoError(t, os.WriteFile(path, fixture(t, nil), 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Document().Len())
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.kra"))
	assert.Error(t, err)
}

func TestOpenWithoutDocInfo(t *testing.T) {
	f := openFixture(t, fixture(t, map[string][]byte{archive.DocInfoMember: nil}))
	assert.Nil(t, f.Info())
	assert.True(t, f.Document().Metadata().Created.IsZero())
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name     string
		override map[string][]byte
		want     error
	}{
		{"no maindoc", map[string][]byte{archive.MaindocMember: nil}, archive.ErrMemberNotFound},
		{"broken maindoc", map[string][]byte{archive.MaindocMember: []byte("<DOC><IMAGE")}, model.ErrStructural},
		{"bad date", map[string][]byte{archive.DocInfoMember: []byte(
			`<document-info><about><date>yesterday</date></about></document-info>`)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := fixture(t, tt.override)
			_, err := OpenReader(bytes.NewReader(data), int64(len(data)))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestOpenMaindocErrorNamesMember(t *testing.T) {
	data := fixture(t, map[string][]byte{archive.MaindocMember: []byte(`<DOC><IMAGE name="x"/></DOC>`)})
	_, err := OpenReader(bytes.NewReader(data), int64(len(data)))
	e, ok := model.AsError(err)
	require.True(t, ok)
	assert.Equal(t, archive.MaindocMember, e.Member)
}

func foreignContainer(t *testing.T, mimetype string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if mimetype != "" {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: archive.MimetypeMember, Method: zip.Store})
		require.NoError(t, err)
		w.Write([]byte(mimetype))
	}
	w, err := zw.Create(archive.MaindocMember)
	require.NoError(t, err)
	w.Write([]byte(fixtureMaindoc))
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestMimetypeCheck(t *testing.T) {
	for _, mt := range []string{"image/openraster", ""} {
		data := foreignContainer(t, mt)

		_, err := OpenReader(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, ErrNotKrita, "mimetype %q", mt)

		core, logs := observer.New(zap.WarnLevel)
		f, err := OpenReader(bytes.NewReader(data), int64(len(data)),
			WithLenientMimetype(), WithLogger(zap.New(core)))
		require.NoError(t, err)
		assert.Equal(t, 4, f.Document().Len())
		assert.Equal(t, 1, logs.FilterMessage("unexpected mimetype").Len())
	}
}

func TestOpenLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	openFixture(t, fixture(t, nil), WithLogger(zap.New(core)))

	entries := logs.FilterMessage("opened document").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Sketch", entries[0].ContextMap()["name"])
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	openFixture(t, fixture(t, nil))
	assert.Equal(t, 1, logs.FilterMessage("opened document").Len())
	assert.NotNil(t, Logger())
}

// ============================================================================
// Raster Tests
// ============================================================================

func TestDecodeRaster(t *testing.T) {
	f := openFixture(t, fixture(t, nil))
	ctx := context.Background()

	ink, err := f.DecodeRaster(ctx, inkID)
	require.NoError(t, err)
	assert.Equal(t, inkRect, ink.Rect)
	assert.True(t, inkSurface().Equal(ink))
	assert.Equal(t, white, ink.Pixel(5, 5))
	assert.Equal(t, red, ink.Pixel(70, 60))

	fade, err := f.DecodeRaster(ctx, fadeID)
	require.NoError(t, err)
	assert.Equal(t, model.FormatAlpha8, fade.Format)
	assert.True(t, fadeSurface().Equal(fade))

	again, err := f.DecodeRaster(ctx, inkID)
	require.NoError(t, err)
	assert.NotSame(t, ink, again)
}

func TestDecodeRasterErrors(t *testing.T) {
	f := openFixture(t, fixture(t, nil))
	ctx := context.Background()

	_, err := f.DecodeRaster(ctx, groupID)
	assert.ErrorIs(t, err, ErrNoRaster)
	_, err = f.DecodeRaster(ctx, levelsID)
	assert.ErrorIs(t, err, ErrNoRaster)
	_, err = f.DecodeRaster(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNodeNotFound)
	_, err = f.DecodeRaster(ctx, uuid.Nil)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDecodeRasterMissingMember(t *testing.T) {
	f := openFixture(t, fixture(t, map[string][]byte{archive.LayerMember("Sketch", "layer2"): nil}))
	_, err := f.DecodeRaster(context.Background(), inkID)
	assert.ErrorIs(t, err, archive.ErrMemberNotFound)
}

func TestDecodeRasterErrorContext(t *testing.T) {
	member := archive.PixelSelectionMember("Sketch", "mask1")
	f := openFixture(t, fixture(t, map[string][]byte{
		member: []byte("VERSION 2\nTILEWIDTH 64\nTILEHEIGHT 64\nPIXELSIZE 1\nDATA 3\n"),
	}))

	_, err := f.DecodeRaster(context.Background(), fadeID)
	assert.ErrorIs(t, err, model.ErrTruncatedStream)
	e, ok := model.AsError(err)
	require.True(t, ok)
	assert.Equal(t, member, e.Member)
	assert.Equal(t, fadeID.String(), e.NodeID)
}

func TestDecodeRasterFormatMismatch(t *testing.T) {
	stream, err := raster.Encode(raster.NewSurface(inkRect, model.FormatRGBA16), 64, 64, nil)
	require.NoError(t, err)
	f := openFixture(t, fixture(t, map[string][]byte{
		archive.LayerMember("Sketch", "layer2"):        stream,
		archive.DefaultPixelMember("Sketch", "layer2"): nil,
	}))

	_, err = f.DecodeRaster(context.Background(), inkID)
	assert.ErrorIs(t, err, model.ErrPixelFormatMismatch)
}

func TestDecodeRasterTileLimit(t *testing.T) {
	f := openFixture(t, fixture(t, nil), WithMaxTiles(1))
	_, err := f.DecodeRaster(context.Background(), inkID)
	assert.ErrorIs(t, err, model.ErrStructural)
}

func TestDecodeRasterCanceled(t *testing.T) {
	f := openFixture(t, fixture(t, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.DecodeRaster(ctx, inkID)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeRasters(t *testing.T) {
	f := openFixture(t, fixture(t, nil), WithWorkers(2))

	got, err := f.DecodeRasters(context.Background(), inkID, fadeID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, inkSurface().Equal(got[inkID]))
	assert.True(t, fadeSurface().Equal(got[fadeID]))

	_, err = f.DecodeRasters(context.Background(), inkID, groupID)
	assert.ErrorIs(t, err, ErrNoRaster)
}

func TestDecodeRasterConcurrent(t *testing.T) {
	f := openFixture(t, fixture(t, nil))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := inkID
			if i%2 == 1 {
				id = fadeID
			}
			_, errs[i] = f.DecodeRaster(context.Background(), id)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestRasterCache(t *testing.T) {
	f := openFixture(t, fixture(t, nil), WithRasterCache(time.Minute))
	ctx := context.Background()

	first, err := f.DecodeRaster(ctx, inkID)
	require.NoError(t, err)
	second, err := f.DecodeRaster(ctx, inkID)
	require.NoError(t, err)
	assert.Same(t, first, second)

	forever := openFixture(t, fixture(t, nil), WithRasterCache(0))
	a, err := forever.DecodeRaster(ctx, fadeID)
	require.NoError(t, err)
	b, err := forever.DecodeRaster(ctx, fadeID)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

// ============================================================================
// Auxiliary Member Tests
// ============================================================================

func TestFilterConfig(t *testing.T) {
	f := openFixture(t, fixture(t, nil))

	got, err := f.FilterConfig(levelsID)
	require.NoError(t, err)
	assert.Equal(t, levels, got)

	_, err = f.FilterConfig(inkID)
	assert.ErrorIs(t, err, ErrNoFilterConfig)
}

func TestMergedImageAndPreview(t *testing.T) {
	f := openFixture(t, fixture(t, nil))

	merged, err := f.MergedImage()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 70), merged.Bounds())

	preview, err := f.Preview()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 7), preview.Bounds())

	bare := openFixture(t, fixture(t, map[string][]byte{archive.PreviewMember: nil}))
	_, err = bare.Preview()
	assert.ErrorIs(t, err, archive.ErrMemberNotFound)

	broken := openFixture(t, fixture(t, map[string][]byte{archive.MergedImageMember: []byte("not a png")}))
	_, err = broken.MergedImage()
	assert.Error(t, err)
}

// ============================================================================
// Write Tests
// ============================================================================

func TestSaveRoundTrip(t *testing.T) {
	f := openFixture(t, fixture(t, nil))

	var buf bytes.Buffer
	require.NoError(t, f.Save(context.Background(), &buf))

	g := openFixture(t, buf.Bytes())
	assert.Equal(t, f.Document().Len(), g.Document().Len())
	assert.Equal(t, f.Document().Metadata().Created, g.Document().Metadata().Created)
	assert.Equal(t, "A. Painter", g.Info().Author.FullName)

	for _, n := range f.Document().Nodes() {
		m, ok := g.Document().Lookup(n.ID)
		require.True(t, ok, n.Name)
		assert.Equal(t, n.Kind, m.Kind)
		assert.Equal(t, n.Base, m.Base)
	}

	ink, err := g.DecodeRaster(context.Background(), inkID)
	require.NoError(t, err)
	assert.True(t, inkSurface().Equal(ink))
	fade, err := g.DecodeRaster(context.Background(), fadeID)
	require.NoError(t, err)
	assert.True(t, fadeSurface().Equal(fade))

	cfg, err := g.FilterConfig(levelsID)
	require.NoError(t, err)
	assert.Equal(t, levels, cfg)

	_, err = g.MergedImage()
	assert.NoError(t, err)

	first := buf.Bytes()[30 : 30+len(archive.MimetypeMember)]
	assert.Equal(t, archive.MimetypeMember, string(first))
}

func TestWriteDerivesInfo(t *testing.T) {
	f := openFixture(t, fixture(t, map[string][]byte{archive.DocInfoMember: nil}))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f.Document(), nil, WriteTileSize(32)))

	g := openFixture(t, buf.Bytes())
	require.NotNil(t, g.Info())
	assert.Equal(t, "Sketch", g.Info().About.Title)
	assert.Empty(t, g.Info().About.CreationDate)
	assert.False(t, g.archive.Has(archive.MergedImageMember))
}

func TestWriteErrors(t *testing.T) {
	f := openFixture(t, fixture(t, nil))
	doc := f.Document()

	tests := []struct {
		name    string
		rasters map[uuid.UUID]*raster.Surface
		opts    []WriteOption
		want    error
	}{
		{"unknown node", map[uuid.UUID]*raster.Surface{uuid.New(): inkSurface()}, nil, ErrNodeNotFound},
		{"no raster kind", map[uuid.UUID]*raster.Surface{groupID: inkSurface()}, nil, ErrNoRaster},
		{"format mismatch", map[uuid.UUID]*raster.Surface{inkID: raster.NewSurface(inkRect, model.FormatRGBA16)}, nil, model.ErrPixelFormatMismatch},
		{"wrong bounds", map[uuid.UUID]*raster.Surface{inkID: raster.NewSurface(image.Rect(0, 0, 4, 4), model.FormatRGBA8)}, nil, nil},
		{"filter config on paint layer", nil, []WriteOption{WriteFilterConfig(inkID, levels)}, ErrNoFilterConfig},
		{"filter config on unknown node", nil, []WriteOption{WriteFilterConfig(uuid.New(), levels)}, ErrNodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Write(&buf, doc, tt.rasters, tt.opts...)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
