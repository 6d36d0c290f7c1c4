package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type logFieldsKey struct{}

// logFields collects values discovered deeper in the chain, such as the
// admin that a bearer token resolved to, for the access log line.
type logFields struct {
	adminID int64
}

// annotateAdmin records the authenticated admin for the access log. It is a
// no-op outside Logger.
func annotateAdmin(ctx context.Context, adminID int64) {
	if f, ok := ctx.Value(logFieldsKey{}).(*logFields); ok {
		f.adminID = adminID
	}
}

// Logger logs one structured line per request: method, path, status,
// duration, bytes, request ID, remote address, and the admin id when the
// request carried a valid token. 4xx responses log at Warn and 5xx at Error.
// Health probes log at Debug.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			fields := &logFields{}
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), logFieldsKey{}, fields)))

			level := slog.LevelInfo
			switch {
			case ww.status >= 500:
				level = slog.LevelError
			case ww.status >= 400:
				level = slog.LevelWarn
			case isProbe(r.URL.Path):
				level = slog.LevelDebug
			}
			if !logger.Enabled(r.Context(), level) {
				return
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"bytes", ww.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if fields.adminID != 0 {
				attrs = append(attrs, "admin_id", fields.adminID)
			}
			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}

func isProbe(path string) bool {
	return path == "/healthz" || path == "/readyz" || strings.HasPrefix(path, "/healthz/")
}

// responseWriter captures the status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
