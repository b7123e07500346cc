package xslt

import (
	"io"
	"log/slog"
	"os"

	"github.com/midbel/xcore/xpath"
)

// Tracer follows the rules applied by a mode.
type Tracer interface {
	Enter(*Rule, xpath.Item)
	Leave(*Rule, xpath.Item)
	Error(*Rule, xpath.Item, error)
}

func NoopTracer() Tracer {
	return discardTracer{}
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ *Rule, _ xpath.Item) {}

func (_ discardTracer) Leave(_ *Rule, _ xpath.Item) {}

func (_ discardTracer) Error(_ *Rule, _ xpath.Item, _ error) {}

type stdioTracer struct {
	logger *slog.Logger
	depth  int
}

func Stdout() Tracer {
	return TraceWriter(os.Stdout)
}

func Stderr() Tracer {
	return TraceWriter(os.Stderr)
}

func TraceWriter(w io.Writer) Tracer {
	return &stdioTracer{
		logger: stdioLogger(w),
	}
}

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func (t *stdioTracer) Enter(rule *Rule, item xpath.Item) {
	t.depth++
	args := []any{
		"rule",
		rule.String(),
		"priority",
		rule.Priority,
		"item",
		describe(item),
		"depth",
		t.depth,
	}
	t.logger.Debug("start rule", args...)
}

func (t *stdioTracer) Leave(rule *Rule, item xpath.Item) {
	args := []any{
		"rule",
		rule.String(),
		"item",
		describe(item),
		"depth",
		t.depth,
	}
	t.logger.Debug("done rule", args...)
	t.depth--
}

func (t *stdioTracer) Error(rule *Rule, item xpath.Item, err error) {
	t.logger.Error("error while applying rule", "rule", rule.String(), "item", describe(item), "depth", t.depth, "err", err.Error())
	t.depth--
}
