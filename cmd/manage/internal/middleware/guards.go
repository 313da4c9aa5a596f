package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/auth"

// Guards gate routes on the session and the User Service Context.
type Guards struct {
	views   Renderer
	onError ErrorHandler
}

// NewGuards creates guards that render denials with views.
func NewGuards(views Renderer, onError ErrorHandler) *Guards {
	if onError == nil {
		onError = defaultErrorHandler
	}
	return &Guards{views: views, onError: onError}
}

// RequireLogin passes authenticated sessions. Anything else is redirected to
// the login entry point after the requested URL is stored for the return trip.
func (g *Guards) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		if ok && sess.Data.Authenticated() {
			next.ServeHTTP(w, r)
			return
		}

		if ok {
			sess.Data.RedirectURL = r.URL.RequestURI()
			if err := sess.Save(r.Context(), w); err != nil {
				g.onError(w, r, fmt.Errorf("save session: %w", err))
				return
			}
		}
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
}

// RequireManageUser passes when the principal holds at least one assignment.
func (g *Guards) RequireManageUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usc, _ := access.UserServicesFromContext(r.Context())
		if !usc.HasRoles() {
			g.NotAuthorised(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireManageUserForService passes when some assignment's service id
// matches the sid route parameter, ignoring case.
func (g *Guards) RequireManageUserForService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usc, _ := access.UserServicesFromContext(r.Context())
		g.warnMalformed(r, usc)
		if !usc.ManagesService(chi.URLParam(r, "sid")) {
			g.NotAuthorised(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole passes when some assignment's role name equals roleName.
func (g *Guards) RequireRole(roleName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			usc, _ := access.UserServicesFromContext(r.Context())
			g.warnMalformed(r, usc)
			if !usc.HasRoleName(roleName) {
				g.NotAuthorised(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NotAuthorised renders the 401 page.
func (g *Guards) NotAuthorised(w http.ResponseWriter, r *http.Request) {
	page := views.PageFrom(r.Context())
	page.Title = "Not authorised"
	if err := g.views.Render(w, http.StatusUnauthorized, views.NotAuthorised, page); err != nil {
		logging.From(r.Context()).Error("render not authorised page", "error", err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
}

func (g *Guards) warnMalformed(r *http.Request, usc *access.UserServiceContext) {
	if _, malformed := usc.DecodedRoles(); len(malformed) > 0 {
		logging.From(r.Context()).Warn("ignoring malformed role codes", "codes", malformed)
	}
}
