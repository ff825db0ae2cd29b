// Package httpmw provides HTTP middleware for the public API server.
//
// httpserver.NewHandler composes them in this order: recover, security
// headers, request ID, client key, OTel tracing, metrics, request logger,
// access log, then the chi router. Rate limiting and admin authentication are
// applied per route group inside the router.
//
// Query strings are logged only after capability tokens have been replaced by
// fingerprints; headers and bodies are never logged.
package httpmw
