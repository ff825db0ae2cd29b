package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle wraps a denial hook so it runs at most once per interval across all
// keys. OnFirstDenied already fires once per key per window, but a scan from many
// addresses still produces one call per address; this caps log volume.
// The first call always runs; a non-positive interval returns fn unchanged.
func Throttle(interval time.Duration, fn func(name, key string)) func(name, key string) {
	if fn == nil || interval <= 0 {
		return fn
	}
	s := &rate.Sometimes{Interval: interval}
	return func(name, key string) {
		s.Do(func() { fn(name, key) })
	}
}
