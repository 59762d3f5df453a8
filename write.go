package kra

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/google/uuid"

	"github.com/tsawler/kra/archive"
	"github.com/tsawler/kra/docinfo"
	"github.com/tsawler/kra/model"
	"github.com/tsawler/kra/raster"
	"github.com/tsawler/kra/tree"
)

// writeConfig holds the optional contents of a written document.
type writeConfig struct {
	info          *docinfo.Info
	filterConfigs map[uuid.UUID][]byte
	merged        image.Image
	preview       image.Image
	tileSize      int
}

// WriteOption adds optional content to a document written by Write.
type WriteOption func(*writeConfig)

// WriteInfo sets the document information. Without it the information is
// derived from the metadata.
func WriteInfo(info *docinfo.Info) WriteOption {
	return func(c *writeConfig) {
		c.info = info
	}
}

// WriteFilterConfig stores the configuration of a filter layer or mask.
func WriteFilterConfig(id uuid.UUID, config []byte) WriteOption {
	return func(c *writeConfig) {
		if c.filterConfigs == nil {
			c.filterConfigs = make(map[uuid.UUID][]byte)
		}
		c.filterConfigs[id] = config
	}
}

// WriteMergedImage stores a flattened rendering of the document.
func WriteMergedImage(img image.Image) WriteOption {
	return func(c *writeConfig) {
		c.merged = img
	}
}

// WritePreview stores a thumbnail of the document.
func WritePreview(img image.Image) WriteOption {
	return func(c *writeConfig) {
		c.preview = img
	}
}

// WriteTileSize sets the raster tile width and height.
func WriteTileSize(n int) WriteOption {
	return func(c *writeConfig) {
		c.tileSize = n
	}
}

// Write assembles a document container: the mimetype, the main document
// markup, the document information and one raster member per entry of
// rasters. Each surface must cover its node's bounds in the node's storage
// format.
func Write(w io.Writer, doc *model.Document, rasters map[uuid.UUID]*raster.Surface, opts ...WriteOption) error {
	cfg := writeConfig{tileSize: raster.DefaultTileSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	meta := doc.Metadata()
	for id := range rasters {
		if _, ok := doc.Lookup(id); !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}
	for id := range cfg.filterConfigs {
		if _, ok := doc.Lookup(id); !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}

	aw, err := archive.NewWriter(w)
	if err != nil {
		return err
	}

	mw, err := aw.Create(archive.MaindocMember)
	if err != nil {
		return err
	}
	if err := tree.Serialize(mw, doc); err != nil {
		return err
	}

	info := cfg.info
	if info == nil {
		info = infoFromMetadata(meta)
	}
	iw, err := aw.Create(archive.DocInfoMember)
	if err != nil {
		return err
	}
	if err := docinfo.Write(iw, info); err != nil {
		return err
	}

	// Members follow document order.
	for _, n := range doc.Nodes() {
		if s, ok := rasters[n.ID]; ok {
			if err := writeRaster(aw, meta, n, s, cfg.tileSize); err != nil {
				return err
			}
		}
		if data, ok := cfg.filterConfigs[n.ID]; ok {
			if n.Kind != model.KindFilterLayer && n.Kind != model.KindFilterMask {
				return fmt.Errorf("%w: %s %q", ErrNoFilterConfig, n.Kind, n.Name)
			}
			if err := aw.WriteMember(archive.FilterConfigMember(meta.Name, n.Filename), data); err != nil {
				return err
			}
		}
	}

	if err := writePNG(aw, archive.MergedImageMember, cfg.merged); err != nil {
		return err
	}
	if err := writePNG(aw, archive.PreviewMember, cfg.preview); err != nil {
		return err
	}
	return aw.Close()
}

func writeRaster(aw *archive.Writer, meta model.Metadata, n *model.Node, s *raster.Surface, tileSize int) error {
	src, err := rasterSourceOf(meta, n)
	if err != nil {
		return err
	}
	if n.Filename == "" {
		return fmt.Errorf("node %q has no filename", n.Name)
	}
	if s.Format != src.format {
		return model.Errorf(model.ErrPixelFormatMismatch, "surface is %s, node stores %s", s.Format, src.format).
			WithNode(n.ID.String()).WithMember(src.member)
	}
	if s.Rect != n.Bounds {
		return fmt.Errorf("surface %v does not cover node %q bounds %v", s.Rect, n.Name, n.Bounds)
	}

	data, err := raster.Encode(s, tileSize, tileSize, nil)
	if err != nil {
		return fmt.Errorf("failed to encode raster of %q: %w", n.Name, err)
	}
	return aw.WriteMember(src.member, data)
}

func writePNG(aw *archive.Writer, member string, img image.Image) error {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", member, err)
	}
	return aw.WriteMember(member, buf.Bytes())
}

func infoFromMetadata(meta model.Metadata) *docinfo.Info {
	info := &docinfo.Info{}
	info.About.Title = meta.Name
	info.About.Description = meta.Description
	info.About.CreationDate = docinfo.FormatDate(meta.Created)
	info.About.Date = docinfo.FormatDate(meta.Modified)
	return info
}

// Save writes the document back out, re-encoding every raster and carrying
// over document information, filter configurations and the stored PNGs.
func (f *File) Save(ctx context.Context, w io.Writer) error {
	rasters, err := f.DecodeRasters(ctx, f.RasterNodes()...)
	if err != nil {
		return err
	}

	var opts []WriteOption
	if f.info != nil {
		opts = append(opts, WriteInfo(f.info))
	}
	meta := f.doc.Metadata()
	for _, n := range f.doc.Nodes() {
		if n.Kind != model.KindFilterLayer && n.Kind != model.KindFilterMask {
			continue
		}
		member := archive.FilterConfigMember(meta.Name, n.Filename)
		if !f.archive.Has(member) {
			continue
		}
		data, err := f.archive.ReadAll(member)
		if err != nil {
			return err
		}
		opts = append(opts, WriteFilterConfig(n.ID, data))
	}
	if f.archive.Has(archive.MergedImageMember) {
		img, err := f.MergedImage()
		if err != nil {
			return err
		}
		opts = append(opts, WriteMergedImage(img))
	}
	if f.archive.Has(archive.PreviewMember) {
		img, err := f.Preview()
		if err != nil {
			return err
		}
		opts = append(opts, WritePreview(img))
	}
	return Write(w, f.doc, rasters, opts...)
}
