package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/manageconsole/manage/cmd/manage/internal/telemetry"
)

// Metrics records request count, latency and in-flight requests, labelled
// with the matched route pattern rather than the raw path.
func Metrics(m *telemetry.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			m.RequestStarted(ctx)
			defer m.RequestFinished(ctx)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(ctx); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordRequest(ctx, r.Method, route, status, float64(time.Since(start).Microseconds())/1000)
		})
	}
}
