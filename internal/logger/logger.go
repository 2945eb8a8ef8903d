// Package logger builds the zap loggers used by the extbuild command.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	Verbose bool      // Debug level instead of Info
	JSON    bool      // JSON lines instead of console output
	Output  io.Writer // Destination, stderr when nil
}

// New builds a logger. Console output is minimal: level, message and fields,
// no timestamps or callers, since the output is read by people running a
// build. JSON output carries timestamps for machine consumption.
func New(opts Options) *zap.Logger {
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		config := zap.NewProductionEncoderConfig()
		config.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(config)
	} else {
		encoder = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			LevelKey:       "level",
			MessageKey:     "msg",
			NameKey:        "logger",
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeName:     zapcore.FullNameEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		})
	}

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), level))
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
