// Package logging builds the process logger: zap underneath, exposed as a
// logr.Logger so library code never depends on zap directly.
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoder.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Options configure New.
type Options struct {
	// Verbosity enables logr V-levels up to this value. 0 logs info and errors only.
	Verbosity int
	Format    Format
	Output    io.Writer
}

// New returns a logr.Logger writing to opts.Output (stderr by default).
func New(opts Options) logr.Logger {
	return zapr.NewLogger(NewZap(opts))
}

// NewZap returns the underlying zap logger for callers that need to Sync it.
func NewZap(opts Options) *zap.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if opts.Format == FormatJSON {
		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(jsonCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	// logr V(n) maps to zap level -n.
	level := zap.NewAtomicLevelAt(zapcore.Level(-opts.Verbosity))
	core := zapcore.NewCore(enc, zapcore.AddSync(out), level)
	return zap.New(core)
}

// Discard returns a logger that drops everything.
func Discard() logr.Logger {
	return logr.Discard()
}
