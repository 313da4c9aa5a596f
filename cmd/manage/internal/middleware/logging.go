package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/manageconsole/manage/cmd/manage/internal/logging"
)

// RequestLogger logs each completed request with status, size and latency.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger := logging.From(r.Context())
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request completed", args...)
			return
		}
		logger.Info("request completed", args...)
	})
}
