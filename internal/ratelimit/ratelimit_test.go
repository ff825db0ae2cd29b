package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/httpmw"
)

// fakeClock is a manually advanced clock shared by a limiter and its test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestLimiter creates a limiter on a fake clock with the sweep disabled.
// Stop is registered with t.Cleanup.
func newTestLimiter(t *testing.T, clock *fakeClock, opts ...Option) *Limiter {
	t.Helper()
	defaults := []Option{
		WithWindow(60 * time.Second),
		WithMax(5),
		WithCleanupInterval(0),
		WithClock(clock.Now),
	}
	l := New(context.Background(), append(defaults, opts...)...)
	t.Cleanup(l.Stop)
	return l
}

func TestIsLimited_FixedWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)

	key := "203.0.113.7"
	for i := 1; i <= 5; i++ {
		if l.IsLimited(key) {
			t.Fatalf("call %d should not be limited", i)
		}
		clock.Advance(time.Second)
	}
	if !l.IsLimited(key) {
		t.Fatal("call 6 should be limited")
	}

	// 61 seconds after call 1 the window has reset
	clock.Advance(56 * time.Second)
	if l.IsLimited(key) {
		t.Fatal("first call of a new window should not be limited")
	}
}

func TestIsLimited_StaysLimitedUntilReset(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(2))

	key := "198.51.100.1"
	l.IsLimited(key)
	l.IsLimited(key)
	for i := 0; i < 10; i++ {
		if !l.IsLimited(key) {
			t.Fatalf("denied call %d should stay limited within the window", i+1)
		}
	}
}

func TestIsLimited_ResetAtBoundaryIsInclusive(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(1))

	key := "198.51.100.2"
	l.IsLimited(key)

	// now == resetAt is still inside the window
	clock.Advance(60 * time.Second)
	if !l.IsLimited(key) {
		t.Fatal("request exactly at resetAt should still count against the window")
	}

	clock.Advance(time.Millisecond)
	if l.IsLimited(key) {
		t.Fatal("request after resetAt should start a new window")
	}
}

func TestIsLimited_ExpiredEntryReplacedNotMerged(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(3))

	key := "10.1.1.1"
	for i := 0; i < 10; i++ {
		l.IsLimited(key)
	}
	clock.Advance(61 * time.Second)

	// a fresh window gets the full budget regardless of the old count
	for i := 1; i <= 3; i++ {
		if l.IsLimited(key) {
			t.Fatalf("call %d in new window should not be limited", i)
		}
	}
	if !l.IsLimited(key) {
		t.Fatal("call 4 in new window should be limited")
	}
}

func TestIsLimited_KeysDoNotShareQuota(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(2))

	for i := 0; i < 3; i++ {
		l.IsLimited("k1")
	}
	if !l.IsLimited("k1") {
		t.Fatal("k1 should be limited")
	}
	if l.IsLimited("k2") {
		t.Fatal("k2 should have its own budget")
	}
}

func TestIsLimited_InstancesIndependent(t *testing.T) {
	clock := newFakeClock()
	admin := newTestLimiter(t, clock, WithName("admin"), WithMax(1))
	form := newTestLimiter(t, clock, WithName("form"), WithMax(1))

	admin.IsLimited("ip")
	if !admin.IsLimited("ip") {
		t.Fatal("admin limiter should be exhausted")
	}
	if form.IsLimited("ip") {
		t.Fatal("exhausting admin must not affect form")
	}
}

func TestIsLimited_ConcurrentNoLostUpdates(t *testing.T) {
	clock := newFakeClock()
	const max = 50
	const callers = 200
	l := newTestLimiter(t, clock, WithMax(max))

	var allowed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !l.IsLimited("shared") {
				allowed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := allowed.Load(); got != max {
		t.Fatalf("allowed = %d, want exactly %d", got, max)
	}
}

// Hooks

func TestOnFirstDenied_OncePerWindow(t *testing.T) {
	clock := newFakeClock()
	var first atomic.Int32
	l := newTestLimiter(t, clock,
		WithMax(1),
		WithOnFirstDenied(func(name, key string) { first.Add(1) }),
	)

	for i := 0; i < 5; i++ {
		l.IsLimited("ip")
	}
	if got := first.Load(); got != 1 {
		t.Fatalf("OnFirstDenied = %d, want 1", got)
	}

	// new window, fresh entry, fires again
	clock.Advance(61 * time.Second)
	for i := 0; i < 5; i++ {
		l.IsLimited("ip")
	}
	if got := first.Load(); got != 2 {
		t.Fatalf("OnFirstDenied after reset = %d, want 2", got)
	}
}

func TestOnDenied_EveryDenialWithName(t *testing.T) {
	clock := newFakeClock()
	var denied atomic.Int32
	var gotName atomic.Value
	l := newTestLimiter(t, clock,
		WithName("download"),
		WithMax(2),
		WithOnDenied(func(name, key string) {
			gotName.Store(name)
			denied.Add(1)
		}),
	)

	for i := 0; i < 7; i++ {
		l.IsLimited("ip")
	}
	if got := denied.Load(); got != 5 {
		t.Fatalf("OnDenied = %d, want 5", got)
	}
	if gotName.Load() != "download" {
		t.Fatalf("hook name = %v, want download", gotName.Load())
	}
}

func TestNilHooks_NoPanic(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(1))
	for i := 0; i < 3; i++ {
		l.IsLimited("ip")
	}
}

func TestThrottle_RunsFirstThenWaitsForInterval(t *testing.T) {
	var calls atomic.Int32
	fn := Throttle(time.Hour, func(name, key string) { calls.Add(1) })

	for i := 0; i < 10; i++ {
		fn("form", "ip")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestThrottle_NilAndZeroInterval(t *testing.T) {
	if Throttle(time.Second, nil) != nil {
		t.Fatal("Throttle(nil) should return nil")
	}

	var calls atomic.Int32
	fn := Throttle(0, func(name, key string) { calls.Add(1) })
	fn("a", "b")
	fn("a", "b")
	if calls.Load() != 2 {
		t.Fatal("zero interval should not throttle")
	}
}

// Sweep

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock)

	l.IsLimited("old")
	clock.Advance(30 * time.Second)
	l.IsLimited("fresh")
	clock.Advance(31 * time.Second)

	removed := l.store.Sweep(clock.Now())
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if l.store.Len() != 1 {
		t.Fatalf("remaining = %d, want 1", l.store.Len())
	}
	l.store.mu.Lock()
	_, ok := l.store.entries["fresh"]
	l.store.mu.Unlock()
	if !ok {
		t.Fatal("fresh entry should survive the sweep")
	}
}

func TestSweepLoop_EvictsAndReports(t *testing.T) {
	var swept atomic.Int32
	l := New(context.Background(),
		WithWindow(10*time.Millisecond),
		WithCleanupInterval(20*time.Millisecond),
		WithOnSweep(func(name string, removed, remaining int) {
			swept.Add(int32(removed))
		}),
	)
	defer l.Stop()

	l.IsLimited("10.0.0.1")
	l.IsLimited("10.0.0.2")

	deadline := time.Now().Add(2 * time.Second)
	for swept.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if swept.Load() < 2 {
		t.Fatalf("sweep removed %d entries, want 2", swept.Load())
	}
	if l.store.Len() != 0 {
		t.Fatalf("store len = %d, want 0", l.store.Len())
	}
}

func TestStop_WaitsForSweepAndIsIdempotent(t *testing.T) {
	l := New(context.Background(), WithCleanupInterval(time.Millisecond))

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	select {
	case <-l.done:
	default:
		t.Fatal("sweep goroutine should have exited")
	}
}

func TestContextCancel_StopsSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(ctx, WithCleanupInterval(time.Millisecond))
	cancel()

	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep goroutine did not exit on context cancel")
	}
}

func TestDefaults(t *testing.T) {
	l := New(context.Background())
	defer l.Stop()

	if l.Window() != DefaultWindow {
		t.Errorf("window = %v, want %v", l.Window(), DefaultWindow)
	}
	if l.Max() != DefaultMax {
		t.Errorf("max = %d, want %d", l.Max(), DefaultMax)
	}
	if l.cleanup != DefaultCleanupInterval {
		t.Errorf("cleanup = %v, want %v", l.cleanup, DefaultCleanupInterval)
	}
}

func TestOptions_IgnoreNonPositive(t *testing.T) {
	l := New(context.Background(), WithWindow(-1), WithMax(0), WithCleanupInterval(0))
	defer l.Stop()

	if l.Window() != DefaultWindow || l.Max() != DefaultMax {
		t.Fatalf("non-positive options should keep defaults, got window=%v max=%d", l.Window(), l.Max())
	}
}

// Middleware

func serveThrough(h http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/api/download", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	httpmw.ClientKey(h).ServeHTTP(rec, r)
	return rec
}

func TestMiddleware_Returns429(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(2))

	var reached atomic.Int32
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached.Add(1)
		w.WriteHeader(http.StatusOK)
	}))

	hdr := map[string]string{"X-Forwarded-For": "203.0.113.9"}
	for i := 0; i < 2; i++ {
		if rec := serveThrough(h, hdr); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	clock.Advance(15 * time.Second)
	rec := serveThrough(h, hdr)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "45" {
		t.Errorf("Retry-After = %q, want 45", got)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"too many requests"}` {
		t.Errorf("body = %q", body)
	}
	if reached.Load() != 2 {
		t.Fatalf("handler reached %d times, want 2", reached.Load())
	}
}

func TestMiddleware_UnknownClientsShareBudget(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(3))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// three different clients without forwarding headers
	for i := 0; i < 3; i++ {
		if rec := serveThrough(h, nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := serveThrough(h, nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("fourth header-less request status = %d, want 429", rec.Code)
	}

	// a client with a resolvable address is unaffected
	if rec := serveThrough(h, map[string]string{"X-Real-IP": "198.51.100.4"}); rec.Code != http.StatusOK {
		t.Fatalf("identified client status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_NoClientKeyInContext(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, clock, WithMax(1))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// without the ClientKey middleware requests fall back to the unknown key
	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != want {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, want)
		}
	}
}
