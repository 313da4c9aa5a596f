package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

const (
	// CSRFHeader carries the token for script submitted requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFField carries the token for HTML forms.
	CSRFField = "_csrf"
)

// RequireCSRFToken rejects state-changing requests whose token does not match
// the one bound to the session. Safe methods pass through.
func (g *Guards) RequireCSRFToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		sess, ok := session.FromContext(r.Context())
		if !ok || sess.Data.CSRFToken == "" {
			g.Forbidden(w, r)
			return
		}

		token := r.Header.Get(CSRFHeader)
		if token == "" {
			token = r.PostFormValue(CSRFField)
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(sess.Data.CSRFToken)) != 1 {
			logging.From(r.Context()).Warn("csrf token mismatch", "method", r.Method, "path", r.URL.Path)
			g.Forbidden(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Forbidden renders the 403 page.
func (g *Guards) Forbidden(w http.ResponseWriter, r *http.Request) {
	page := views.PageFrom(r.Context())
	page.Title = "Request rejected"
	if err := g.views.Render(w, http.StatusForbidden, views.Forbidden, page); err != nil {
		logging.From(r.Context()).Error("render forbidden page", "error", err)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}
}
