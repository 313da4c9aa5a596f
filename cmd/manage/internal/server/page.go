package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/middleware"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// render fills the base page for r and renders it. Pending flash messages
// are consumed.
func (s *server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, msgs map[string]string) error {
	ctx := r.Context()
	page := views.PageFrom(ctx)
	page.Title = title
	page.Data = data
	page.ValidationMessages = msgs
	page.ServiceID = chi.URLParam(r, "sid")

	if sess, ok := session.FromContext(ctx); ok {
		page.CSRFToken = sess.Data.CSRFToken
		if flashes := sess.PopFlashes(); len(flashes) > 0 {
			page.Flashes = flashes
			if err := sess.Save(ctx, w); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
		}
	}

	return s.views.Render(w, status, name, page)
}

// redirectWithFlash queues a flash message and redirects to target.
func (s *server) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message, target string) error {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return ErrNoSession
	}
	sess.AddFlash(kind, message)
	if err := sess.Save(r.Context(), w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}

// currentUser returns the signed-in principal.
func currentUser(r *http.Request) (*session.Principal, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok || !sess.Data.Authenticated() {
		return nil, ErrNoSession
	}
	return sess.Data.User, nil
}

func userServices(r *http.Request) *access.UserServiceContext {
	usc, _ := access.UserServicesFromContext(r.Context())
	return usc
}

func correlationID(r *http.Request) string {
	return middleware.CorrelationID(r.Context())
}
