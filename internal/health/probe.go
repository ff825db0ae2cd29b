package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

// Probe reports a dependency's state when asked. A nil error means healthy.
type Probe interface{ Check(context.Context) error }

type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed returns a probe with a constant answer. An empty reason becomes
// "unhealthy".
func Fixed(ok bool, reason string) CheckFunc {
	var err error
	if !ok {
		if reason == "" {
			reason = "unhealthy"
		}
		err = xerrors.New(reason)
	}
	return func(context.Context) error { return err }
}

// All runs probes in order and stops at the first failure. Nil probes are
// skipped.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// ProbeError is what a Named probe fails with. Error() only names the
// dependency so readiness bodies never leak backend details.
type ProbeError struct {
	Name  string
	Cause error
}

func (e *ProbeError) Error() string { return e.Name + " unavailable" }
func (e *ProbeError) Unwrap() error { return e.Cause }

func Named(name string, p Probe) CheckFunc {
	return func(ctx context.Context) error {
		err := p.Check(ctx)
		if err == nil {
			return nil
		}
		return &ProbeError{Name: name, Cause: err}
	}
}

// WithTimeout gives each check of p at most d.
func WithTimeout(d time.Duration, p Probe) CheckFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return p.Check(ctx)
	}
}

// ShutdownGate fails readiness once draining begins. The zero value is open.
type ShutdownGate struct {
	reason atomic.Pointer[string]
}

// Set closes the gate. An empty reason reads as "draining".
func (g *ShutdownGate) Set(reason string) {
	if reason == "" {
		reason = "draining"
	}
	g.reason.Store(&reason)
}

// Clear reopens the gate.
func (g *ShutdownGate) Clear() { g.reason.Store(nil) }

func (g *ShutdownGate) Draining() bool { return g.reason.Load() != nil }

func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if r := g.reason.Load(); r != nil {
			return xerrors.New(*r)
		}
		return nil
	}
}
