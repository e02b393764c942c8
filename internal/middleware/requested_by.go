package middleware

import (
	"net/http"

	pkgmiddleware "upgradewatch/pkg/http/middleware"
	"upgradewatch/pkg/http/response"
)

// RequestedByHeader must accompany state-changing requests, same as Ambari.
const RequestedByHeader = "X-Requested-By"

// RequireRequestedBy rejects non-safe methods that lack RequestedByHeader.
func RequireRequestedBy() pkgmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			switch request.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				if request.Header.Get(RequestedByHeader) == "" {
					response.WriteError(writer, http.StatusBadRequest, "missing "+RequestedByHeader+" header")

					return
				}
			}

			next.ServeHTTP(writer, request)
		})
	}
}
