package kra

import (
	"time"

	"go.uber.org/zap"
)

// Options holds configuration for opening a document.
type Options struct {
	// Raster decoding
	workers  int // tiles or layers decoded concurrently, 0 means GOMAXPROCS
	maxTiles int // tile count limit per raster stream, 0 means the raster default

	// Opt-in cache of decoded surfaces, keyed by node identifier
	cacheTTL time.Duration

	// Container checks
	lenientMimetype bool // accept a missing or foreign mimetype member

	logger *zap.Logger
}

// Option configures a File.
type Option func(*Options)

// defaultOptions returns the default options.
func defaultOptions() Options {
	return Options{
		workers:         0,
		maxTiles:        0,
		cacheTTL:        0, // no cache
		lenientMimetype: false,
		logger:          nil, // package logger
	}
}

// WithWorkers bounds the number of tiles or layers decoded concurrently.
// Values below one use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.workers = n
	}
}

// WithMaxTiles bounds the number of tiles a raster stream may declare.
func WithMaxTiles(n int) Option {
	return func(o *Options) {
		o.maxTiles = n
	}
}

// WithRasterCache keeps decoded surfaces for ttl so that repeated
// DecodeRaster calls for the same node return the same surface. Callers
// must then treat returned surfaces as read-only. A ttl of zero or less
// keeps surfaces until the File is closed.
func WithRasterCache(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl <= 0 {
			ttl = -1
		}
		o.cacheTTL = ttl
	}
}

// WithLogger sets the logger for one File, overriding the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// WithLenientMimetype accepts containers whose mimetype member is missing
// or names another format. A warning is logged instead.
func WithLenientMimetype() Option {
	return func(o *Options) {
		o.lenientMimetype = true
	}
}
