package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/telemetry"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

type fakeRenderer struct {
	name string
	page views.Page
}

func (f *fakeRenderer) Render(w http.ResponseWriter, status int, name string, page views.Page) error {
	f.name, f.page = name, page
	w.WriteHeader(status)
	_, err := w.Write([]byte(name))
	return err
}

type fakeLookup struct {
	getSingleUserServiceFunc func(ctx context.Context, userID, serviceID, organisationID, correlationID string) (*access.UserServiceContext, error)
	calls                    int
}

func (f *fakeLookup) GetSingleUserService(ctx context.Context, userID, serviceID, organisationID, correlationID string) (*access.UserServiceContext, error) {
	f.calls++
	return f.getSingleUserServiceFunc(ctx, userID, serviceID, organisationID, correlationID)
}

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewManager(session.NewRedisStore(client, "test:session:"), session.Options{})
}

func newSession(t *testing.T, m *session.Manager, user *session.Principal) *session.Session {
	t.Helper()
	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.Data.User = user
	return sess
}

func withSession(r *http.Request, s *session.Session) *http.Request {
	return r.WithContext(session.WithSession(r.Context(), s))
}

func withRoles(r *http.Request, codes ...string) *http.Request {
	usc := &access.UserServiceContext{UserID: "user-1"}
	for _, c := range codes {
		usc.Roles = append(usc.Roles, access.Role{ID: c, Code: c})
	}
	return r.WithContext(access.WithUserServices(r.Context(), usc))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireLogin_RedirectsAndStoresURL(t *testing.T) {
	m := newTestManager(t)
	g := NewGuards(&fakeRenderer{}, nil)
	sess := newSession(t, m, nil)

	req := withSession(httptest.NewRequest(http.MethodGet, "/services/svc1/users?page=2", nil), sess)
	rec := httptest.NewRecorder()
	g.RequireLogin(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))
	assert.Equal(t, "/services/svc1/users?page=2", sess.Data.RedirectURL)

	// The redirect URL survives into the next request.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	next := httptest.NewRequest(http.MethodGet, "/auth", nil)
	next.AddCookie(cookies[0])
	reloaded, err := m.Load(next)
	require.NoError(t, err)
	assert.Equal(t, "/services/svc1/users?page=2", reloaded.Data.RedirectURL)
}

func TestRequireLogin_NoSessionStillRedirects(t *testing.T) {
	g := NewGuards(&fakeRenderer{}, nil)
	rec := httptest.NewRecorder()
	g.RequireLogin(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/services", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))
}

func TestRequireLogin_PassesAuthenticated(t *testing.T) {
	m := newTestManager(t)
	g := NewGuards(&fakeRenderer{}, nil)
	sess := newSession(t, m, &session.Principal{Subject: "user-1"})

	rec := httptest.NewRecorder()
	g.RequireLogin(okHandler).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/services", nil), sess))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, sess.Data.RedirectURL)
}

func TestRequireManageUser(t *testing.T) {
	rend := &fakeRenderer{}
	g := NewGuards(rend, nil)

	rec := httptest.NewRecorder()
	g.RequireManageUser(okHandler).ServeHTTP(rec, withRoles(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "errors/notAuthorised", rend.name)

	rec = httptest.NewRecorder()
	g.RequireManageUser(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unset context means no access")

	rec = httptest.NewRecorder()
	g.RequireManageUser(okHandler).ServeHTTP(rec, withRoles(httptest.NewRequest(http.MethodGet, "/", nil), "svc1_role"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireManageUserForService(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		sid   string
		want  int
	}{
		{"matching service", []string{"svc1_serviceconfig"}, "svc1", http.StatusOK},
		{"case insensitive", []string{"svc1_serviceconfig"}, "SVC1", http.StatusOK},
		{"second role matches", []string{"svc2_a", "svc1_b"}, "svc1", http.StatusOK},
		{"other service", []string{"svc2_serviceconfig"}, "svc1", http.StatusUnauthorized},
		{"prefix is not a match", []string{"svc10_serviceconfig"}, "svc1", http.StatusUnauthorized},
		{"malformed code ignored", []string{"svc1"}, "svc1", http.StatusUnauthorized},
		{"no roles", nil, "svc1", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuards(&fakeRenderer{}, nil)
			r := chi.NewRouter()
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					next.ServeHTTP(w, withRoles(req, tt.codes...))
				})
			})
			r.With(g.RequireManageUserForService).Get("/services/{sid}", okHandler)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/services/"+tt.sid, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	g := NewGuards(&fakeRenderer{}, nil)
	guard := g.RequireRole("accessManage")

	rec := httptest.NewRecorder()
	guard(okHandler).ServeHTTP(rec, withRoles(httptest.NewRequest(http.MethodGet, "/", nil), "svc1_accessManage"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	guard(okHandler).ServeHTTP(rec, withRoles(httptest.NewRequest(http.MethodGet, "/", nil), "svc1_serviceconfig", "svc1_accessmanage"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "role names are case sensitive")
}

func TestUserContext(t *testing.T) {
	m := newTestManager(t)
	user := &session.Principal{Subject: "user-1", GivenName: "Jane", FamilyName: "Doe"}

	t.Run("stores assignments and base page", func(t *testing.T) {
		lookup := &fakeLookup{getSingleUserServiceFunc: func(ctx context.Context, userID, serviceID, organisationID, correlationID string) (*access.UserServiceContext, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "manage-svc", serviceID)
			assert.Equal(t, "manage-org", organisationID)
			assert.Equal(t, "corr-1", correlationID)
			return &access.UserServiceContext{Roles: []access.Role{{Code: "svc1_role"}}}, nil
		}}

		var got *access.UserServiceContext
		var page views.Page
		h := UserContext(lookup, "manage-svc", "manage-org", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = access.UserServicesFromContext(r.Context())
			page = views.PageFrom(r.Context())
		}))

		req := withSession(httptest.NewRequest(http.MethodGet, "/services", nil), newSession(t, m, user))
		req = req.WithContext(WithCorrelationID(req.Context(), "corr-1"))
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, got)
		assert.Len(t, got.Roles, 1)
		assert.Equal(t, "Jane Doe", page.DisplayName)
		assert.Equal(t, user, page.User)
	})

	t.Run("not found leaves context unset", func(t *testing.T) {
		lookup := &fakeLookup{getSingleUserServiceFunc: func(context.Context, string, string, string, string) (*access.UserServiceContext, error) {
			return nil, &clients.UpstreamError{Service: "access", StatusCode: http.StatusNotFound}
		}}

		called := false
		h := UserContext(lookup, "s", "o", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			_, ok := access.UserServicesFromContext(r.Context())
			assert.False(t, ok)
		}))
		h.ServeHTTP(httptest.NewRecorder(), withSession(httptest.NewRequest(http.MethodGet, "/", nil), newSession(t, m, user)))
		assert.True(t, called)
	})

	t.Run("upstream failure goes to the error handler", func(t *testing.T) {
		boom := errors.New("boom")
		lookup := &fakeLookup{getSingleUserServiceFunc: func(context.Context, string, string, string, string) (*access.UserServiceContext, error) {
			return nil, boom
		}}

		var handled error
		onError := func(w http.ResponseWriter, r *http.Request, err error) {
			handled = err
			w.WriteHeader(http.StatusInternalServerError)
		}
		h := UserContext(lookup, "s", "o", onError)(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/", nil), newSession(t, m, user)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.ErrorIs(t, handled, boom)
	})

	t.Run("anonymous requests skip the lookup", func(t *testing.T) {
		lookup := &fakeLookup{}
		h := UserContext(lookup, "s", "o", nil)(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/", nil), newSession(t, m, nil)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, lookup.calls)
	})
}

func TestCSRF(t *testing.T) {
	m := newTestManager(t)
	sess := newSession(t, m, &session.Principal{Subject: "user-1"})
	token := sess.Data.CSRFToken
	require.NotEmpty(t, token)

	post := func(body url.Values, header string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/services/select-service", strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if header != "" {
			req.Header.Set(CSRFHeader, header)
		}
		return withSession(req, sess)
	}

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"get passes", withSession(httptest.NewRequest(http.MethodGet, "/", nil), sess), http.StatusOK},
		{"form field", post(url.Values{"_csrf": {token}}, ""), http.StatusOK},
		{"header", post(url.Values{}, token), http.StatusOK},
		{"missing", post(url.Values{}, ""), http.StatusForbidden},
		{"wrong", post(url.Values{"_csrf": {"nope"}}, ""), http.StatusForbidden},
		{"no session", httptest.NewRequest(http.MethodPost, "/", nil), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rend := &fakeRenderer{}
			rec := httptest.NewRecorder()
			NewGuards(rend, nil).RequireCSRFToken(okHandler).ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, views.Forbidden, rend.name)
			}
		})
	}
}

func TestLoadSession(t *testing.T) {
	m := newTestManager(t)

	var got *session.Session
	h := LoadSession(m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = session.FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.True(t, got.IsNew())
}

func TestCorrelation(t *testing.T) {
	var seen string
	h := Correlation(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(clients.HeaderCorrelationID, "corr-in")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "corr-in", seen)
	assert.Equal(t, "corr-in", rec.Header().Get(clients.HeaderCorrelationID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(clients.HeaderCorrelationID))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "json")

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	req = req.WithContext(logging.Inject(req.Context(), logger))
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
	assert.Contains(t, out, `"path":"/services"`)
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	sm, err := telemetry.NewServerMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(Metrics(sm))
	r.Get("/services/{sid}", okHandler)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/services/svc1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
