package routing

import (
	"net/http"
	"sort"
	"strings"

	pkgmiddleware "upgradewatch/pkg/http/middleware"
	"upgradewatch/pkg/http/response"
)

// Router dispatches on the longest registered path prefix. Every handler is
// wrapped in the router's middleware chain.
type Router struct {
	middlewareChain pkgmiddleware.Chain
	handlers        map[string]http.Handler
}

// Route pairs a path prefix with its handler.
type Route struct {
	PathPrefix string
	Handler    http.Handler
}

// NewRouter creates a new router with the given middleware chain.
func NewRouter(middlewareChain pkgmiddleware.Chain, routes ...Route) *Router {
	router := &Router{
		middlewareChain: middlewareChain,
		handlers:        make(map[string]http.Handler),
	}

	for _, route := range routes {
		router.RegisterHandler(route.PathPrefix, route.Handler)
	}

	return router
}

// RegisterHandler registers a handler for a specific path prefix.
func (r *Router) RegisterHandler(pathPrefix string, handler http.Handler) {
	r.handlers[pathPrefix] = r.middlewareChain.Then(handler)
}

// RegisterHandlerFunc registers a handler function for a specific path prefix.
func (r *Router) RegisterHandlerFunc(pathPrefix string, handlerFunc http.HandlerFunc) {
	r.RegisterHandler(pathPrefix, handlerFunc)
}

// Prefixes lists the registered prefixes in sorted order.
func (r *Router) Prefixes() []string {
	prefixes := make([]string, 0, len(r.handlers))
	for prefix := range r.handlers {
		prefixes = append(prefixes, prefix)
	}

	sort.Strings(prefixes)

	return prefixes
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	handler := r.FindHandler(req.URL.Path)
	if handler == nil {
		response.WriteError(writer, http.StatusNotFound, "endpoint not found")

		return
	}

	handler.ServeHTTP(writer, req)
}

// FindHandler returns the handler for path, or nil if no prefix matches.
func (r *Router) FindHandler(path string) http.Handler {
	if handler, exists := r.handlers[path]; exists {
		return handler
	}

	var (
		longestPrefix string
		bestHandler   http.Handler
	)

	for prefix, handler := range r.handlers {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(longestPrefix) {
			longestPrefix = prefix
			bestHandler = handler
		}
	}

	return bestHandler
}
