// Package logging builds the process logger. Everything below cmd/ takes a
// logr.Logger; this is the only place that knows the backend is zap.
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Verbose enables V(1) debug lines.
	Verbose bool
	// JSON forces JSON output even on a terminal.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a logr.Logger backed by zap and a function that flushes it.
// Output is human-readable on a terminal and JSON elsewhere.
func New(opts Options) (logr.Logger, func()) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if !opts.JSON && isTerminal(out) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	zl := zap.New(core, zap.AddCaller())

	return zapr.NewLogger(zl), func() { _ = zl.Sync() }
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
