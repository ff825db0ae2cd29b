// Package ratelimit is a fixed-window request throttle keyed by client.
//
// Each Limiter owns a WindowStore mapping a key to {count, resetAt}. The first
// request of a window creates the entry, later requests increment it, and the
// request that pushes count past max is the first one rejected. An expired
// entry is replaced, never merged, so stale state corrects itself on the next
// request even if the background sweep has not run yet.
//
// Fixed windows allow a burst of up to 2*max requests straddling a window
// boundary. That is accepted in exchange for O(1) memory and CPU per key.
//
// State is in-memory and per process. Behind a load balancer every instance
// throttles independently, so this is best-effort abuse prevention, not a
// global quota.
//
// Keys come from httpmw.ClientKey. Clients with no forwarded address all share
// the "unknown" key and therefore one budget.
package ratelimit
