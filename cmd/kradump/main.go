// Command kradump prints the layer tree of Krita documents and optionally
// exports their layer rasters.
//
// Usage:
//
//	kradump [flags] file.kra...
//
// Settings can also come from KRADUMP_* environment variables or a .env file
// in the working directory.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/tsawler/kra"
	"github.com/tsawler/kra/format"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		color.Red("kradump: %v", err)
		os.Exit(2)
	}
	color.NoColor = color.NoColor || cfg.NoColor

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		color.Red("kradump: %v", err)
		os.Exit(2)
	}
	defer log.Sync()

	failed := 0
	for _, path := range cfg.Files {
		if err := run(cfg, path, log); err != nil {
			color.Red("%s: %v", path, err)
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func run(cfg *Config, path string, log *zap.Logger) error {
	if !checkFormat(path, cfg.Lenient) {
		color.Yellow("%s: not a Krita document, skipping", path)
		return nil
	}

	opts := []kra.Option{kra.WithWorkers(cfg.Workers), kra.WithLogger(log)}
	if cfg.MaxTiles > 0 {
		opts = append(opts, kra.WithMaxTiles(cfg.MaxTiles))
	}
	if cfg.Lenient {
		opts = append(opts, kra.WithLenientMimetype())
	}
	f, err := kra.Open(path, opts...)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := dumpDocument(os.Stdout, f.Document(), f.Info()); err != nil {
		return err
	}
	if cfg.OutDir == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	dir := filepath.Join(cfg.OutDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	n, err := exportRasters(ctx, f, dir, cfg.Export, log)
	if err != nil {
		return err
	}
	color.Green("exported %d rasters to %s", n, dir)

	if cfg.ThumbSize > 0 {
		thumb := filepath.Join(dir, "thumbnail.png")
		if err := writeThumbnail(f, thumb, cfg.ThumbSize); err != nil {
			return fmt.Errorf("thumbnail: %w", err)
		}
		color.Green("wrote %s", thumb)
	}
	return nil
}

// checkFormat reports whether path should be opened. The extension decides
// when it is known; otherwise the container is sniffed.
func checkFormat(path string, lenient bool) bool {
	switch format.Detect(path) {
	case format.KRA, format.KRZ:
		return true
	case format.ORA:
		return false
	}
	fh, err := os.Open(path)
	if err != nil {
		// Let Open report the error.
		return true
	}
	defer fh.Close()
	info, err := fh.Stat()
	if err != nil {
		return true
	}
	f, err := format.DetectFromReader(fh, info.Size())
	if err != nil {
		return lenient
	}
	return f.Krita() || lenient
}
