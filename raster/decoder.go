package raster

import (
	"context"
	"image"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/kra/internal/logging"
	"github.com/tsawler/kra/model"
)

// Decoder decodes raster streams into surfaces. The zero value is ready to
// use.
type Decoder struct {
	// Workers bounds the tiles decoded concurrently. Zero uses GOMAXPROCS.
	Workers int
	// MaxTiles bounds the tile count a stream may declare. Zero uses
	// DefaultMaxTiles.
	MaxTiles int
	// Logger overrides the package logger.
	Logger *zap.Logger
}

// Decode parses stream, decodes its tiles in parallel and assembles them
// into a surface covering bounds. The context is checked between tiles.
func (d *Decoder) Decode(ctx context.Context, stream []byte, f model.PixelFormat, bounds image.Rectangle, defaultPixel []byte) (*Surface, error) {
	log := logging.Or(d.Logger)

	if err := CheckBounds(bounds, f); err != nil {
		return nil, err
	}
	dir, err := ParseDirectory(ctx, stream, f, d.MaxTiles)
	if err != nil {
		return nil, err
	}

	workers := d.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	tiles := make([]Tile, len(dir.Tiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, desc := range dir.Tiles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pix, err := DecodeTile(stream, dir.Header, desc)
			if err != nil {
				return err
			}
			tiles[i] = Tile{TileDescriptor: desc, Pix: pix}
			log.Debug("decoded tile", zap.Int("x", desc.X), zap.Int("y", desc.Y), zap.Int("bytes", desc.Length))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Assemble(dir.Header, tiles, bounds, defaultPixel)
}
