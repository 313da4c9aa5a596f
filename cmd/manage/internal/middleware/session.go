package middleware

import (
	"fmt"
	"net/http"

	"github.com/manageconsole/manage/cmd/manage/internal/session"
)

// LoadSession loads the browser session for every request and stores it on
// the context. A store failure is passed to onError.
func LoadSession(m *session.Manager, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Load(r)
			if err != nil {
				onError(w, r, fmt.Errorf("load session: %w", err))
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}
