package kra

import (
	"go.uber.org/zap"

	"github.com/tsawler/kra/internal/logging"
)

// SetLogger sets the logger used by every package of this module. The
// default discards all output. Passing nil restores the default.
//
// A File opened WithLogger uses its own logger instead.
func SetLogger(l *zap.Logger) {
	logging.Set(l)
}

// Logger returns the current package logger.
func Logger() *zap.Logger {
	return logging.L()
}
