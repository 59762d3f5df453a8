// Package kra reads painting documents in the .kra format: the layer and
// mask tree, document metadata and per-layer pixel data.
//
// Basic usage:
//
//	f, err := kra.Open("painting.kra")
//	if err != nil {
//	    // handle error
//	}
//	defer f.Close()
//
//	doc := f.Document()
//	doc.Walk(func(n *model.Node, depth int) error {
//	    fmt.Println(strings.Repeat("  ", depth), n.Kind, n.Name)
//	    return nil
//	})
//
// Pixels are decoded on demand, one node at a time:
//
//	surface, err := f.DecodeRaster(ctx, layer.ID)
//
// With options:
//
//	f, err := kra.Open("painting.kra",
//	    kra.WithWorkers(4),
//	    kra.WithRasterCache(time.Minute),
//	    kra.WithLogger(logger),
//	)
//
// For lower-level access, the tree, raster and archive packages can be used
// directly.
package kra

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/kra/archive"
	"github.com/tsawler/kra/docinfo"
	"github.com/tsawler/kra/internal/logging"
	"github.com/tsawler/kra/model"
	"github.com/tsawler/kra/raster"
	"github.com/tsawler/kra/tree"
)

var (
	// ErrNotKrita is returned when a container's mimetype member does not
	// name a Krita document.
	ErrNotKrita = errors.New("kra: not a krita document")
	// ErrNodeNotFound is returned for an identifier with no node.
	ErrNodeNotFound = errors.New("kra: node not found")
	// ErrNoRaster is returned when a node kind stores no pixel data.
	ErrNoRaster = errors.New("kra: node has no raster data")
	// ErrNoFilterConfig is returned when a node kind stores no filter
	// configuration.
	ErrNoFilterConfig = errors.New("kra: node has no filter configuration")
)

// File is an open painting document. Its Document is immutable; pixel data
// is decoded on request. A File is safe for concurrent use.
type File struct {
	archive    *archive.Reader
	ownsReader bool // true if Open created the archive and Close must release it

	doc  *model.Document
	info *docinfo.Info

	options Options
	decoder *raster.Decoder
	cache   *surfaceCache
	log     *zap.Logger
}

// Open opens a document file.
// The returned File must be closed when done.
func Open(filename string, opts ...Option) (*File, error) {
	ar, err := archive.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	f, err := newFile(ar, opts)
	if err != nil {
		ar.Close()
		return nil, err
	}
	f.ownsReader = true
	return f, nil
}

// OpenReader reads a document from r, which holds size bytes.
// The caller remains responsible for r.
func OpenReader(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	ar, err := archive.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return newFile(ar, opts)
}

func newFile(ar *archive.Reader, opts []Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	f := &File{
		archive: ar,
		options: o,
		cache:   newSurfaceCache(o.cacheTTL),
		log:     logging.Or(o.logger),
	}
	f.decoder = &raster.Decoder{Workers: o.workers, MaxTiles: o.maxTiles, Logger: f.log}

	if err := f.checkMimetype(); err != nil {
		return nil, err
	}

	var created, modified time.Time
	if ar.Has(archive.DocInfoMember) {
		data, err := ar.ReadAll(archive.DocInfoMember)
		if err != nil {
			return nil, err
		}
		if f.info, err = docinfo.ParseBytes(data); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", archive.DocInfoMember, err)
		}
		if created, err = f.info.Created(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", archive.DocInfoMember, err)
		}
		if modified, err = f.info.Modified(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", archive.DocInfoMember, err)
		}
	}

	rc, err := ar.Open(archive.MaindocMember)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	f.doc, err = tree.Parse(rc, tree.WithTimestamps(created, modified), tree.WithLogger(f.log))
	if err != nil {
		if e, ok := model.AsError(err); ok && e.Member == "" {
			e.Member = archive.MaindocMember
		}
		return nil, err
	}

	meta := f.doc.Metadata()
	f.log.Info("opened document",
		zap.String("name", meta.Name),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Stringer("colorspace", meta.Format),
		zap.Int("nodes", f.doc.Len()))
	return f, nil
}

func (f *File) checkMimetype() error {
	mt, err := f.archive.Mimetype()
	switch {
	case err == nil && mt == archive.MimeType:
		if first := f.archive.FirstMember(); first != archive.MimetypeMember {
			f.log.Warn("mimetype is not the first member", zap.String("first", first))
		}
		return nil
	case f.options.lenientMimetype:
		f.log.Warn("unexpected mimetype", zap.String("mimetype", mt), zap.Error(err))
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", ErrNotKrita, err)
	default:
		return fmt.Errorf("%w: mimetype %q", ErrNotKrita, mt)
	}
}

// Close releases resources associated with the File.
// It is safe to call Close multiple times.
func (f *File) Close() error {
	f.cache.Flush()
	if f.ownsReader {
		f.ownsReader = false
		return f.archive.Close()
	}
	return nil
}

// Document returns the layer tree and metadata.
func (f *File) Document() *model.Document {
	return f.doc
}

// Info returns the document information, or nil when the container has
// none.
func (f *File) Info() *docinfo.Info {
	return f.info
}

// Members returns the names of all container members.
func (f *File) Members() []string {
	return f.archive.Members()
}

// rasterSource names where a node's pixels live and how they are stored.
type rasterSource struct {
	member       string
	defaultPixel string
	format       model.PixelFormat
}

func (f *File) lookup(id uuid.UUID) (*model.Node, error) {
	n, ok := f.doc.Lookup(id)
	if !ok || n == f.doc.Root() {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n, nil
}

// rasterSourceOf returns the raster members of n. Paint layers are stored
// in their own colorspace, or the image colorspace when they name none;
// pixel masks are 8-bit alpha.
func rasterSourceOf(meta model.Metadata, n *model.Node) (rasterSource, error) {
	switch n.Kind {
	case model.KindPaintLayer:
		src := rasterSource{
			member:       archive.LayerMember(meta.Name, n.Filename),
			defaultPixel: archive.DefaultPixelMember(meta.Name, n.Filename),
			format:       meta.Format,
		}
		if cs := n.ColorSpace(); cs != "" {
			f, err := model.ParseColorSpace(cs)
			if err != nil {
				return src, model.NewError(model.ErrPixelFormatMismatch, "layer colorspace is unknown").
					WithNode(n.ID.String()).Wrap(err)
			}
			src.format = f
		}
		return src, nil
	case model.KindTransparencyMask, model.KindSelectionMask, model.KindFilterMask:
		member := archive.PixelSelectionMember(meta.Name, n.Filename)
		return rasterSource{
			member:       member,
			defaultPixel: member + archive.DefaultPixelSuffix,
			format:       model.FormatAlpha8,
		}, nil
	}
	return rasterSource{}, fmt.Errorf("%w: %s %q", ErrNoRaster, n.Kind, n.Name)
}

// DecodeRaster decodes the pixels of one node into a surface covering the
// node's bounds. Each call returns a freshly decoded surface unless the
// File was opened WithRasterCache.
func (f *File) DecodeRaster(ctx context.Context, id uuid.UUID) (*raster.Surface, error) {
	if s, ok := f.cache.Get(id); ok {
		f.log.Debug("raster cache hit", zap.Stringer("node", id))
		return s, nil
	}

	n, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	src, err := rasterSourceOf(f.doc.Metadata(), n)
	if err != nil {
		return nil, err
	}

	data, err := f.archive.ReadAll(src.member)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster of %q: %w", n.Name, err)
	}
	var def []byte
	if f.archive.Has(src.defaultPixel) {
		if def, err = f.archive.ReadAll(src.defaultPixel); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	s, err := f.decoder.Decode(ctx, data, src.format, n.Bounds, def)
	if err != nil {
		if e, ok := model.AsError(err); ok {
			if e.Member == "" {
				e.Member = src.member
			}
			if e.NodeID == "" {
				e.NodeID = n.ID.String()
			}
		}
		return nil, err
	}
	f.log.Info("decoded raster",
		zap.String("node", n.Name),
		zap.String("member", src.member),
		zap.Stringer("format", src.format),
		zap.Duration("elapsed", time.Since(start)))

	f.cache.Save(id, s)
	return s, nil
}

// DecodeRasters decodes several nodes concurrently. The first error cancels
// the remaining decodes.
func (f *File) DecodeRasters(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*raster.Surface, error) {
	surfaces := make([]*raster.Surface, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if f.options.workers > 0 {
		g.SetLimit(f.options.workers)
	}
	for i, id := range ids {
		g.Go(func() error {
			s, err := f.DecodeRaster(gctx, id)
			if err != nil {
				return err
			}
			surfaces[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]*raster.Surface, len(ids))
	for i, id := range ids {
		out[id] = surfaces[i]
	}
	return out, nil
}

// RasterNodes returns the identifiers of every node that stores pixel data,
// in document order.
func (f *File) RasterNodes() []uuid.UUID {
	var ids []uuid.UUID
	meta := f.doc.Metadata()
	for _, n := range f.doc.Nodes() {
		if _, err := rasterSourceOf(meta, n); err == nil {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// FilterConfig returns the stored configuration of a filter layer or filter
// mask. The content is opaque markup.
func (f *File) FilterConfig(id uuid.UUID) ([]byte, error) {
	n, err := f.lookup(id)
	if err != nil {
		return nil, err
	}
	if n.Kind != model.KindFilterLayer && n.Kind != model.KindFilterMask {
		return nil, fmt.Errorf("%w: %s %q", ErrNoFilterConfig, n.Kind, n.Name)
	}
	return f.archive.ReadAll(archive.FilterConfigMember(f.doc.Metadata().Name, n.Filename))
}

// MergedImage decodes the flattened rendering stored with the document.
func (f *File) MergedImage() (image.Image, error) {
	return f.decodePNG(archive.MergedImageMember)
}

// Preview decodes the thumbnail stored with the document.
func (f *File) Preview() (image.Image, error) {
	return f.decodePNG(archive.PreviewMember)
}

func (f *File) decodePNG(member string) (image.Image, error) {
	rc, err := f.archive.Open(member)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, err := png.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", member, err)
	}
	return img, nil
}
