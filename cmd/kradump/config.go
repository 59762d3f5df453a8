package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the command settings. Environment variables (optionally from
// a .env file) provide defaults; flags override them.
type Config struct {
	Workers   int
	MaxTiles  int
	LogLevel  string
	OutDir    string
	Export    string // tiff or png
	ThumbSize int
	Timeout   time.Duration
	Lenient   bool
	NoColor   bool
	Files     []string
}

// loadConfig reads the environment and parses args.
func loadConfig(args []string) (*Config, error) {
	// A missing .env file is normal.
	_ = godotenv.Load()

	cfg := &Config{
		Workers:   getEnvInt("KRADUMP_WORKERS", 0),
		MaxTiles:  getEnvInt("KRADUMP_MAX_TILES", 0),
		LogLevel:  getEnv("KRADUMP_LOG_LEVEL", "warn"),
		OutDir:    getEnv("KRADUMP_OUT_DIR", ""),
		Export:    getEnv("KRADUMP_EXPORT", "tiff"),
		ThumbSize: getEnvInt("KRADUMP_THUMB_SIZE", 0),
		Timeout:   getEnvDuration("KRADUMP_TIMEOUT", 5*time.Minute),
		Lenient:   getEnv("KRADUMP_LENIENT", "false") == "true",
		NoColor:   os.Getenv("NO_COLOR") != "",
	}

	fs := flag.NewFlagSet("kradump", flag.ContinueOnError)
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "tiles decoded concurrently (0 = all CPUs)")
	fs.IntVar(&cfg.MaxTiles, "max-tiles", cfg.MaxTiles, "tile count limit per layer (0 = default)")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "directory to export layer rasters into")
	fs.StringVar(&cfg.Export, "export", cfg.Export, "raster export format: tiff or png")
	fs.IntVar(&cfg.ThumbSize, "thumb", cfg.ThumbSize, "write a thumbnail of the merged image with this longest side")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "time limit per document")
	fs.BoolVar(&cfg.Lenient, "lenient", cfg.Lenient, "accept containers with a missing or foreign mimetype")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "disable colored output")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kradump [flags] file.kra...\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Files = fs.Args()

	if len(cfg.Files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	if cfg.Export != "tiff" && cfg.Export != "png" {
		return nil, fmt.Errorf("unknown export format %q", cfg.Export)
	}
	if cfg.ThumbSize > 0 && cfg.OutDir == "" {
		return nil, fmt.Errorf("-thumb needs -out")
	}
	return cfg, nil
}

// newLogger builds a console logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zc.DisableStacktrace = true
	return zc.Build()
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
