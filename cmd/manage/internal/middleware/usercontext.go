package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// UserContext resolves the signed-in principal's role assignments in the
// manage service namespace and stores them with access.WithUserServices.
// It also seeds the base page with the principal and display name.
//
// Requests without a principal pass through untouched. A 404 from the access
// service means the principal holds no assignments and also leaves the
// context unset.
func UserContext(lookup AccessLookup, serviceID, organisationID string, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, ok := session.FromContext(ctx)
			if !ok || !sess.Data.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}

			user := sess.Data.User
			page := views.PageFrom(ctx)
			page.User = user
			page.DisplayName = user.DisplayName()
			ctx = views.WithPage(ctx, page)

			usc, err := lookup.GetSingleUserService(ctx, user.Subject, serviceID, organisationID, CorrelationID(ctx))
			switch {
			case errors.Is(err, clients.ErrNotFound):
				logging.From(ctx).Debug("principal has no manage assignments", "user_id", user.Subject)
			case err != nil:
				onError(w, r.WithContext(ctx), fmt.Errorf("resolve user services for %s: %w", user.Subject, err))
				return
			default:
				ctx = access.WithUserServices(ctx, usc)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
