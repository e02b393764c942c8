package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered list of middleware. The first one added is the
// outermost wrapper.
type Chain struct {
	middlewares []Middleware
}

// New creates a new middleware chain.
func New(middlewares ...Middleware) Chain {
	return Chain{middlewares: append([]Middleware(nil), middlewares...)}
}

// Then wraps handler with the chain. A nil handler answers 404.
func (c Chain) Then(handler http.Handler) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}

	return handler
}

// ThenFunc wraps a handler function with the chain.
func (c Chain) ThenFunc(handlerFunc http.HandlerFunc) http.Handler {
	return c.Then(handlerFunc)
}

// Append returns a new chain with middlewares added innermost.
func (c Chain) Append(middlewares ...Middleware) Chain {
	combined := make([]Middleware, 0, len(c.middlewares)+len(middlewares))
	combined = append(combined, c.middlewares...)
	combined = append(combined, middlewares...)

	return Chain{middlewares: combined}
}

// Len returns the number of middlewares in the chain.
func (c Chain) Len() int {
	return len(c.middlewares)
}
