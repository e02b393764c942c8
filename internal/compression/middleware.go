package compression

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"upgradewatch/internal/config"
	"upgradewatch/internal/interfaces"
	pkgmiddleware "upgradewatch/pkg/http/middleware"

	"github.com/andybalholm/brotli"
)

// Static errors for err113 compliance.
var (
	ErrHijackerNotSupported = errors.New("hijacker not supported by underlying ResponseWriter")
)

// encodings maps configured type names to Content-Encoding tokens.
//
//nolint:gochecknoglobals // fixed lookup table
var encodings = map[string]string{
	"gzip":    "gzip",
	"deflate": "deflate",
	"brotli":  "br",
	"br":      "br",
}

type settings struct {
	types        []string
	level        int
	minSize      int
	contentTypes []string
	logger       interfaces.Logger
}

// Middleware compresses responses whose content type and size qualify, using
// the first configured encoding the client accepts. WebSocket upgrades pass
// through untouched.
func Middleware(cfg config.CompressionConfig, logger interfaces.Logger) pkgmiddleware.Middleware {
	s := &settings{
		level:        cfg.Level,
		minSize:      cfg.MinSize,
		contentTypes: cfg.ContentTypes,
		logger:       logger.Named("compression"),
	}

	for _, t := range cfg.Types {
		if enc, ok := encodings[strings.ToLower(t)]; ok {
			s.types = append(s.types, enc)
		}
	}

	return func(next http.Handler) http.Handler {
		if !cfg.IsEnabled() || len(s.types) == 0 {
			return next
		}

		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if isUpgrade(request) {
				next.ServeHTTP(writer, request)

				return
			}

			encoding := s.negotiate(request.Header.Get("Accept-Encoding"))
			if encoding == "" {
				next.ServeHTTP(writer, request)

				return
			}

			recorder := &responseRecorder{ResponseWriter: writer, settings: s, encoding: encoding}

			next.ServeHTTP(recorder, request)

			err := recorder.Close()
			if err != nil {
				s.logger.Errorf("Failed to close compression stream: %v", err)
			}
		})
	}
}

func isUpgrade(request *http.Request) bool {
	return request.Method == http.MethodConnect ||
		strings.EqualFold(request.Header.Get("Upgrade"), "websocket") ||
		strings.Contains(strings.ToLower(request.Header.Get("Connection")), "upgrade") ||
		request.Header.Get("Sec-WebSocket-Key") != ""
}

// negotiate picks the first configured encoding the client accepts with a
// non-zero quality.
func (s *settings) negotiate(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}

	accepted := make(map[string]bool)

	for _, part := range strings.Split(strings.ToLower(acceptEncoding), ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")

		q := 1.0
		if value, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			parsed, err := strconv.ParseFloat(value, 64)
			if err == nil {
				q = parsed
			}
		}

		accepted[strings.TrimSpace(token)] = q > 0
	}

	for _, enc := range s.types {
		if ok, listed := accepted[enc]; listed {
			if ok {
				return enc
			}

			continue
		}

		if accepted["*"] {
			return enc
		}
	}

	return ""
}

func (s *settings) shouldCompress(contentType string, size int) bool {
	if size < s.minSize {
		return false
	}

	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, ct := range s.contentTypes {
		if strings.HasPrefix(contentType, strings.ToLower(ct)) {
			return true
		}
	}

	return false
}

func (s *settings) newWriter(encoding string, w io.Writer) (io.WriteCloser, error) {
	switch encoding {
	case "gzip":
		if s.level == -1 {
			return gzip.NewWriter(w), nil
		}

		zw, err := gzip.NewWriterLevel(w, s.level)
		if err != nil {
			return nil, fmt.Errorf("gzip level %d: %w", s.level, err)
		}

		return zw, nil
	case "deflate":
		level := s.level
		if level == -1 {
			level = flate.DefaultCompression
		}

		fw, err := flate.NewWriter(w, level)
		if err != nil {
			return nil, fmt.Errorf("deflate level %d: %w", level, err)
		}

		return fw, nil
	default:
		if s.level == -1 {
			return brotli.NewWriter(w), nil
		}

		return brotli.NewWriterLevel(w, s.level), nil
	}
}

// responseRecorder buffers the body until the handler finishes or flushes,
// then decides whether to compress it.
type responseRecorder struct {
	http.ResponseWriter

	settings      *settings
	encoding      string
	headerWritten bool
	compressor    io.WriteCloser
	buffer        []byte
	statusCode    int
}

func (rr *responseRecorder) WriteHeader(statusCode int) {
	if rr.headerWritten {
		return
	}

	rr.statusCode = statusCode
}

func (rr *responseRecorder) Write(data []byte) (int, error) {
	if !rr.headerWritten {
		rr.buffer = append(rr.buffer, data...)

		return len(data), nil
	}

	out := io.Writer(rr.ResponseWriter)
	if rr.compressor != nil {
		out = rr.compressor
	}

	n, err := out.Write(data)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}

	return n, nil
}

// Close writes out whatever is buffered and closes the compressor.
func (rr *responseRecorder) Close() error {
	err := rr.drain()
	if err != nil {
		return err
	}

	if rr.compressor != nil {
		err = rr.compressor.Close()
		if err != nil {
			return fmt.Errorf("failed to close compressor: %w", err)
		}
	}

	return nil
}

func (rr *responseRecorder) Flush() {
	err := rr.drain()
	if err != nil {
		rr.settings.logger.Errorf("Failed to flush response: %v", err)
	}

	if flusher, ok := rr.compressor.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}

	if flusher, ok := rr.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, ErrHijackerNotSupported
	}

	conn, rw, err := hj.Hijack()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hijack connection: %w", err)
	}

	return conn, rw, nil
}

func (rr *responseRecorder) drain() error {
	if !rr.headerWritten {
		rr.finalizeHeaders()
	}

	if len(rr.buffer) == 0 {
		return nil
	}

	buffered := rr.buffer
	rr.buffer = nil

	_, err := rr.Write(buffered)
	if err != nil {
		return fmt.Errorf("failed to write buffered data: %w", err)
	}

	return nil
}

func (rr *responseRecorder) finalizeHeaders() {
	rr.headerWritten = true

	if rr.statusCode == 0 {
		rr.statusCode = http.StatusOK
	}

	header := rr.Header()
	if header.Get("Content-Encoding") == "" &&
		rr.statusCode != http.StatusNoContent &&
		rr.statusCode != http.StatusNotModified &&
		rr.settings.shouldCompress(header.Get("Content-Type"), len(rr.buffer)) {
		compressor, err := rr.settings.newWriter(rr.encoding, rr.ResponseWriter)
		if err != nil {
			rr.settings.logger.Errorf("Failed to create compressor for %s: %v", rr.encoding, err)
		} else {
			header.Del("Content-Length")
			header.Set("Content-Encoding", rr.encoding)
			header.Add("Vary", "Accept-Encoding")

			rr.compressor = compressor
		}
	}

	rr.ResponseWriter.WriteHeader(rr.statusCode)
}
