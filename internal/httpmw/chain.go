package httpmw

import "net/http"

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

// Chain wraps h in mws with mws[0] outermost. Nil entries are skipped so
// optional middleware can be listed inline.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	return Compose(mws...)(h)
}

// Compose folds mws into a single middleware, first entry outermost.
func Compose(mws ...Middleware) Middleware {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				h = mws[i](h)
			}
		}
		return h
	}
}
