package xpath

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	CodeEffectiveBoolean = "FORG0006"
	CodeCast             = "FORG0001"
	CodeType             = "XPTY0004"
	CodeMixedPath        = "XPTY0018"
	CodeRootNotNode      = "XPTY0020"
	CodeAbsentFocus      = "XPDY0002"
	CodeUndefinedVar     = "XPST0008"
	CodeUndefinedFunc    = "XPST0017"
	CodeDivideByZero     = "FOAR0001"
	CodeAtomizeFunc      = "FOTY0013"
	CodeDuplicateKey     = "FOJS0003"
	CodeInvalidOption    = "FOJS0005"
	CodeUserError        = "FOER0000"
	CodeCircularity      = "XTDE0640"
	CodeAmbiguousRule    = "XTDE0540"
	CodeInternal         = "SXIE0001"
)

var fatalCodes = map[string]struct{}{
	CodeCircularity: {},
	CodeInternal:    {},
}

var (
	ErrFrozen      = errors.New("expression tree is frozen")
	ErrNode        = errors.New("node expected")
	ErrOperand     = errors.New("operand not attached to a single parent")
	ErrImplemented = errors.New("not implemented")
)

type Location struct {
	Module string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.Module == "" && l.Line == 0 {
		return "unknown location"
	}
	return fmt.Sprintf("%s:%d:%d", l.Module, l.Line, l.Column)
}

// Error is raised by compilation and evaluation. Code is one of the standard
// error codes and is stable across releases.
type Error struct {
	Code    string
	Message string
	Location

	Static  bool
	Type    bool
	Context *Context
}

func (e *Error) Error() string {
	if e.Line == 0 && e.Module == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Location, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Fatal reports whether the error must always propagate.
func (e *Error) Fatal() bool {
	_, ok := fatalCodes[e.Code]
	return ok
}

// Code returns a value suited to errors.Is comparisons on the given code.
func Code(code string) error {
	return &Error{Code: code}
}

func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Fatal()
}

func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func dynamicError(code, msg string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msg, args...),
	}
}

func typeError(code, msg string, args ...any) *Error {
	e := dynamicError(code, msg, args...)
	e.Type = true
	return e
}

func staticError(code string, loc Location, msg string, args ...any) *Error {
	e := dynamicError(code, msg, args...)
	e.Static = true
	e.Location = loc
	return e
}

func internalError(loc Location, msg string, args ...any) *Error {
	return staticError(CodeInternal, loc, msg, args...)
}

// locate fills the location and context of errors raised while evaluating
// an expression if they are not already set.
func locate(err error, loc Location, ctx *Context) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if e.Line == 0 && e.Module == "" {
		e.Location = loc
	}
	if e.Context == nil && !e.Static {
		e.Context = ctx
	}
	return err
}

// ErrorListener receives recoverable errors and warnings. Errors given to
// the listener have already been recovered from.
type ErrorListener interface {
	Warning(error)
	Error(error)
}

type logListener struct {
	logger *slog.Logger
}

func LogListener(logger *slog.Logger) ErrorListener {
	if logger == nil {
		logger = slog.Default()
	}
	return logListener{
		logger: logger,
	}
}

func (l logListener) Warning(err error) {
	l.logger.Warn("recoverable condition", "error", err)
}

func (l logListener) Error(err error) {
	l.logger.Error("recovered error", "error", err)
}

// Collector keeps the errors and warnings it receives.
type Collector struct {
	Warnings []error
	Errors   []error
}

func (c *Collector) Warning(err error) {
	c.Warnings = append(c.Warnings, err)
}

func (c *Collector) Error(err error) {
	c.Errors = append(c.Errors, err)
}
