package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/manageconsole/manage/cmd/manage/internal/audit"
	"github.com/manageconsole/manage/cmd/manage/internal/auth"
	managemiddleware "github.com/manageconsole/manage/cmd/manage/internal/middleware"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/telemetry"
)

// DefaultUserManagementRole gates the user screens when none is configured.
const DefaultUserManagementRole = "accessManage"

// RouterOptions carries everything the router and its handlers depend on.
// Access, Applications, Organisations, Search, Views, Sessions and Policy are
// required.
type RouterOptions struct {
	Access        accessService
	Applications  applicationsService
	Organisations organisationsService
	Search        searchService

	Views    managemiddleware.Renderer
	Sessions *session.Manager
	Policy   *auth.FeaturePolicy
	Audit    audit.Writer

	// RelyingParty enables /auth and /auth/cb. Without it the login routes
	// are not mounted.
	RelyingParty *auth.RelyingParty

	// ManageServiceID and ManageOrganisationID scope the per-request role
	// lookup.
	ManageServiceID      string
	ManageOrganisationID string
	UserManagementRole   string

	// SignedOutURL is sent to the identity provider as the post logout
	// redirect.
	SignedOutURL string

	Metrics        *telemetry.ServerMetrics
	AuthMetrics    *telemetry.AuthMetrics
	MetricsHandler http.Handler
	EnableSentry   bool

	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

type server struct {
	access        accessService
	applications  applicationsService
	organisations organisationsService
	search        searchService

	views  managemiddleware.Renderer
	guards *managemiddleware.Guards
	policy *auth.FeaturePolicy
	audit  audit.Writer

	rp           *auth.RelyingParty
	authMetrics  *telemetry.AuthMetrics
	signedOutURL string
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the chi router with shared middleware, the session and
// user context loaders, the guards and every handler mounted.
func NewRouter(opts RouterOptions) chi.Router {
	s := &server{
		access:        opts.Access,
		applications:  opts.Applications,
		organisations: opts.Organisations,
		search:        opts.Search,
		views:         opts.Views,
		policy:        opts.Policy,
		audit:         opts.Audit,
		rp:            opts.RelyingParty,
		authMetrics:   opts.AuthMetrics,
		signedOutURL:  opts.SignedOutURL,
	}
	if s.audit == nil {
		s.audit = audit.NewSlogWriter(slog.Default())
	}
	s.guards = managemiddleware.NewGuards(opts.Views, s.handleError)

	role := opts.UserManagementRole
	if role == "" {
		role = DefaultUserManagementRole
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(managemiddleware.Correlation)
	r.Use(managemiddleware.RequestLogger)
	r.Use(middleware.Recoverer)
	if opts.EnableSentry {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	if opts.Metrics != nil {
		r.Use(managemiddleware.Metrics(opts.Metrics))
	}
	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/healthcheck", healthHandler)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(managemiddleware.LoadSession(opts.Sessions, s.handleError))
		r.Use(managemiddleware.UserContext(opts.Access, opts.ManageServiceID, opts.ManageOrganisationID, s.handleError))
		r.NotFound(s.notFound)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/services", http.StatusFound)
		})

		if s.rp != nil {
			r.Get("/auth", s.handleLogin())
			r.Get("/auth/cb", s.handleCallback())
		} else {
			slog.Warn("no identity provider configured; /auth is not mounted")
		}
		r.Get("/signout", s.Handle(s.signOut))

		r.Route("/services", func(r chi.Router) {
			r.Use(s.guards.RequireLogin)
			r.Use(s.guards.RequireCSRFToken)
			r.NotFound(s.notFound)

			r.Get("/", s.Handle(s.root))
			r.With(s.guards.RequireManageUser).Get("/select-service", s.Handle(s.getSelectService))
			r.With(s.guards.RequireManageUser).Post("/select-service", s.Handle(s.postSelectService))

			r.Route("/{sid}", func(r chi.Router) {
				r.Use(s.guards.RequireManageUserForService)

				r.Get("/", s.Handle(s.dashboard))

				r.Get("/service-configuration", s.Handle(s.getServiceConfig))
				r.Post("/service-configuration", s.Handle(s.postServiceConfig))

				r.Get("/service-banners", s.Handle(s.getServiceBanners))
				r.Post("/service-banners", s.Handle(s.postServiceBanners))
				r.Get("/service-banners/new-banner", s.Handle(s.getEditBanner))
				r.Post("/service-banners/new-banner", s.Handle(s.postEditBanner))
				r.Get("/service-banners/{bid}", s.Handle(s.getEditBanner))
				r.Post("/service-banners/{bid}", s.Handle(s.postEditBanner))

				r.Group(func(r chi.Router) {
					r.Use(s.guards.RequireRole(role))

					r.Get("/users", s.Handle(s.usersSearch))
					r.Post("/users", s.Handle(s.usersSearch))
					r.Get("/users/{uid}/organisations", s.Handle(s.userOrganisations))
					r.Get("/users/{uid}/organisations/{oid}", s.Handle(s.getEditService))
					r.Post("/users/{uid}/organisations/{oid}", s.Handle(s.postEditService))
					r.Get("/users/{uid}/organisations/{oid}/confirm-edit-service", s.Handle(s.getConfirmEditService))
					r.Post("/users/{uid}/organisations/{oid}/confirm-edit-service", s.Handle(s.postConfirmEditService))
				})
			})
		})
	})

	return r
}
