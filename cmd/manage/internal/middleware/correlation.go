package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
)

type correlationKey struct{}

// Correlation reuses the incoming x-correlation-id header or generates one,
// echoes it on the response and attaches a logger carrying it.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(clients.HeaderCorrelationID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(clients.HeaderCorrelationID, id)

		ctx := context.WithValue(r.Context(), correlationKey{}, id)
		logger := logging.From(ctx).With(slog.String("correlation_id", id))
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			logger = logger.With(slog.String("request_id", reqID))
		}
		ctx = logging.Inject(ctx, logger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationID returns the request's correlation id, or "" outside a request.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// WithCorrelationID sets the correlation id on ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}
