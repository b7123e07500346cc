package xpath

import (
	"io"
	"log/slog"
	"os"
)

// Tracer follows the passes run by the compiler.
type Tracer interface {
	Enter(string)
	Leave(string)
	Error(string, error)
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ string)          {}
func (_ discardTracer) Leave(_ string)          {}
func (_ discardTracer) Error(_ string, _ error) {}

type stdioTracer struct {
	logger   *slog.Logger
	depth    int
	errcount int
}

func TraceStdout() Tracer {
	return TraceWriter(os.Stdout)
}

func TraceStderr() Tracer {
	return TraceWriter(os.Stderr)
}

func TraceWriter(w io.Writer) Tracer {
	tracer := stdioTracer{
		logger: stdioLogger(w),
	}
	return &tracer
}

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func (t *stdioTracer) Enter(pass string) {
	t.depth++
	args := []any{
		"pass",
		pass,
		"depth",
		t.depth,
	}
	t.logger.Debug("start compile pass", args...)
}

func (t *stdioTracer) Leave(pass string) {
	t.depth--
	args := []any{
		"pass",
		pass,
		"depth",
		t.depth,
	}
	t.logger.Debug("done compile pass", args...)
}

func (t *stdioTracer) Error(pass string, err error) {
	t.errcount++
	t.depth--
	args := []any{
		"pass",
		pass,
		"depth",
		t.depth,
		"errors",
		t.errcount,
		"err",
		err,
	}
	t.logger.Error("compile pass failed", args...)
}
