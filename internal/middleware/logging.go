package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"upgradewatch/internal/interfaces"
	pkgmiddleware "upgradewatch/pkg/http/middleware"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// LoggingMiddleware logs every request with its status, duration and a
// request id, which is echoed back to the client.
func LoggingMiddleware(logger interfaces.Logger) pkgmiddleware.Middleware {
	requestLogger := logger.Named("http-request")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, request *http.Request) {
			start := time.Now()

			requestID := request.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, requestID)

			wrappedWriter := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			requestLogger.Debugf("Starting request: %s %s", request.Method, request.URL.Path)

			next.ServeHTTP(wrappedWriter, request)

			requestLogger.Info("Completed request",
				"method", request.Method,
				"path", request.URL.Path,
				"status", wrappedWriter.statusCode,
				"duration", time.Since(start),
				"request_id", requestID)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter

	statusCode int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker interface for WebSocket support.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}

	conn, buf, err := hijacker.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hijack connection: %w", err)
	}

	rw.statusCode = http.StatusSwitchingProtocols

	return conn, buf, nil
}

// Flush implements http.Flusher interface for streaming support.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
