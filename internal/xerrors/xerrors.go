// Package xerrors adds call-site positions and stacks to errors, and a Kind
// that decides which HTTP status a failure maps to. Messages are never
// changed by a Kind or a stack.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxStackDepth = 64

// stacked carries the stack at the point the error was created.
type stacked struct {
	err error
	pcs []uintptr
}

func (s *stacked) Error() string       { return s.err.Error() }
func (s *stacked) Unwrap() error       { return s.err }
func (s *stacked) StackPCs() []uintptr { return s.pcs }
func (s *stacked) IsXerrorsWrapper()   {}

// wrapped prefixes a message and remembers the single frame that wrapped.
type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error     { return w.err }
func (w *wrapped) PC() uintptr       { return w.pc }
func (w *wrapped) IsXerrorsWrapper() {}

// callers returns the stack above the function skip levels up from its caller.
func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	// runtime.Callers and callers itself
	return pcs[:runtime.Callers(skip+2, pcs)]
}

func caller(skip int) uintptr {
	var pc [1]uintptr
	if runtime.Callers(skip+2, pc[:]) == 0 {
		return 0
	}
	return pc[0]
}

// withStackSkip: skip 2 records the caller of the exported function that
// called withStackSkip.
func withStackSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &stacked{err: err, pcs: callers(skip)}
}

func New(msg string) error { return withStackSkip(errors.New(msg), 2) }

func Newf(format string, args ...any) error {
	return withStackSkip(fmt.Errorf(format, args...), 2)
}

// Wrap returns nil for a nil err.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: caller(1)}
}

// Wrapf returns nil for a nil err.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: caller(1)}
}

func WithStack(err error) error { return withStackSkip(err, 2) }

// EnsureTrace adds a stack unless the chain already carries one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && len(hs.StackPCs()) > 0 {
		return err
	}
	return withStackSkip(err, 2)
}
