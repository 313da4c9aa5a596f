package server

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/middleware"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// ErrNoSession is returned when a handler runs without the session loader.
var ErrNoSession = errors.New("no session on request")

// HandlerFunc is a route handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts h to http.HandlerFunc, sending any returned error through
// the shared error responder.
func (s *server) Handle(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.handleError(w, r, err)
		}
	}
}

// handleError renders the not found page for upstream 404s and the generic
// error page for everything else. Unexpected errors are reported to Sentry.
func (s *server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := logging.From(ctx)
	page := views.PageFrom(ctx)

	if errors.Is(err, clients.ErrNotFound) {
		logger.Info("resource not found", "path", r.URL.Path, "error", err)
		page.Title = "Page not found"
		s.renderFallback(w, r, http.StatusNotFound, views.NotFound, page)
		return
	}

	logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}

	page.Title = "Sorry, there is a problem with the service"
	page.Data = middleware.CorrelationID(ctx)
	s.renderFallback(w, r, http.StatusInternalServerError, views.Error, page)
}

func (s *server) renderFallback(w http.ResponseWriter, r *http.Request, status int, name string, page views.Page) {
	if err := s.views.Render(w, status, name, page); err != nil {
		logging.From(r.Context()).Error("render error page", "view", name, "error", err)
		http.Error(w, http.StatusText(status), status)
	}
}

func (s *server) notFound(w http.ResponseWriter, r *http.Request) {
	page := views.PageFrom(r.Context())
	page.Title = "Page not found"
	s.renderFallback(w, r, http.StatusNotFound, views.NotFound, page)
}
