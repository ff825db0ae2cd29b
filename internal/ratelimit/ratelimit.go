package ratelimit

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

const (
	DefaultWindow          = time.Minute
	DefaultMax             = 10
	DefaultCleanupInterval = 5 * time.Minute
)

// errLimited carries no detail about limits or remaining budget.
var errLimited = xerrors.WithKind(errors.New("rate limit exceeded"), xerrors.KindRateLimited)

// Limiter is a fixed-window limiter for one endpoint category. Instances are
// independent: exhausting one never affects another.
type Limiter struct {
	name    string
	window  time.Duration
	max     int
	cleanup time.Duration
	now     func() time.Time
	store   *WindowStore

	// OnFirstDenied fires once per key per window, used for logging
	OnFirstDenied func(name, key string)
	// OnDenied fires on every denied request, used for prometheus counters
	OnDenied func(name, key string)
	// OnSweep fires after each background sweep with the number of evicted keys
	OnSweep func(name string, removed, remaining int)

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*Limiter)

// WithName labels the limiter in hooks and metrics ("admin", "form", ...).
func WithName(name string) Option {
	return func(l *Limiter) { l.name = name }
}

// WithWindow sets the window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithMax sets how many requests a key may make per window.
func WithMax(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.max = n
		}
	}
}

// WithCleanupInterval controls how often expired windows are swept. Zero or negative disables the sweep.
func WithCleanupInterval(d time.Duration) Option {
	return func(l *Limiter) { l.cleanup = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithOnFirstDenied(fn func(name, key string)) Option {
	return func(l *Limiter) { l.OnFirstDenied = fn }
}

func WithOnDenied(fn func(name, key string)) Option {
	return func(l *Limiter) { l.OnDenied = fn }
}

func WithOnSweep(fn func(name string, removed, remaining int)) Option {
	return func(l *Limiter) { l.OnSweep = fn }
}

// New creates a Limiter and starts its sweep goroutine. The goroutine exits when
// ctx is cancelled or Stop is called.
func New(ctx context.Context, opts ...Option) *Limiter {
	l := &Limiter{
		name:    "default",
		window:  DefaultWindow,
		max:     DefaultMax,
		cleanup: DefaultCleanupInterval,
		now:     time.Now,
		store:   NewWindowStore(),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}

	ctx, l.cancel = context.WithCancel(ctx)
	if l.cleanup > 0 {
		go l.sweepLoop(ctx)
	} else {
		close(l.done)
	}
	return l
}

func (l *Limiter) Name() string          { return l.name }
func (l *Limiter) Window() time.Duration { return l.window }
func (l *Limiter) Max() int              { return l.max }

// IsLimited records a request for key and reports whether it exceeds the
// window's budget. The first max calls in a window return false, every later
// call in the same window returns true.
func (l *Limiter) IsLimited(key string) bool {
	count, firstDenied := l.store.hit(key, l.now(), l.window, l.max)
	if count <= l.max {
		return false
	}
	if firstDenied && l.OnFirstDenied != nil {
		l.OnFirstDenied(l.name, key)
	}
	if l.OnDenied != nil {
		l.OnDenied(l.name, key)
	}
	return true
}

// Stop cancels the sweep goroutine and waits for it to return. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		<-l.done
	})
}

func (l *Limiter) sweepLoop(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := l.store.Sweep(l.now())
			if l.OnSweep != nil {
				l.OnSweep(l.name, removed, l.store.Len())
			}
		}
	}
}

// retryAfter is the whole seconds until key's window resets, at least 1.
func (l *Limiter) retryAfter(key string) int {
	now := l.now()
	reset := l.store.resetAt(key, now)
	if reset.IsZero() {
		return 1
	}
	secs := int(math.Ceil(reset.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Middleware rejects requests over the limit with 429. The key is the one
// resolved by httpmw.ClientKey.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := httpmw.ClientKeyFromContext(r.Context())
		if key == "" {
			key = httpmw.UnknownClientKey
		}
		if l.IsLimited(key) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter(key)))
			httpmw.WriteError(w, errLimited, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
