// Package health provides composable probes and the HTTP handlers behind the
// liveness (/-/healthy) and readiness (/-/ready) endpoints.
//
// Probes combine with [All]. [Named] hides a dependency's raw error behind a
// stable reason and [WithTimeout] bounds a slow check.
//
// [ShutdownGate] fails readiness as soon as draining starts so load balancers
// stop routing new requests before in-flight ones finish.
package health
