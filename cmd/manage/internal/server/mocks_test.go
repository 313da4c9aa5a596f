package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/audit"
	"github.com/manageconsole/manage/cmd/manage/internal/auth"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// mockAccess answers the manage lookup from managerRoles and falls back to
// fixed data for everything else.
type mockAccess struct {
	managerRoles []string

	getServicesForUserFunc       func(ctx context.Context, userID string) ([]access.UserService, error)
	getServicesForInvitationFunc func(ctx context.Context, invitationID string) ([]access.UserService, error)
	updateUserServiceFunc        func(ctx context.Context, userID, serviceID, organisationID string, roleIDs []string) error
	updateInvitationServiceFunc  func(ctx context.Context, invitationID, serviceID, organisationID string, roleIDs []string) error
}

func (m *mockAccess) GetSingleUserService(_ context.Context, userID, serviceID, organisationID, _ string) (*access.UserServiceContext, error) {
	if len(m.managerRoles) == 0 {
		return nil, clients.ErrNotFound
	}
	usc := &access.UserServiceContext{UserID: userID, ServiceID: serviceID, OrganisationID: organisationID}
	for _, code := range m.managerRoles {
		usc.Roles = append(usc.Roles, access.Role{ID: "id-" + code, Name: code, Code: code})
	}
	return usc, nil
}

func (m *mockAccess) ListRolesOfService(_ context.Context, _, _ string) ([]access.Role, error) {
	return []access.Role{
		{ID: "r1", Name: "Role one", Code: "SVC1_one"},
		{ID: "r2", Name: "Role two", Code: "SVC1_two"},
	}, nil
}

func (m *mockAccess) GetServicesForUser(ctx context.Context, userID, _ string) ([]access.UserService, error) {
	if m.getServicesForUserFunc != nil {
		return m.getServicesForUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockAccess) GetServicesForInvitation(ctx context.Context, invitationID, _ string) ([]access.UserService, error) {
	if m.getServicesForInvitationFunc != nil {
		return m.getServicesForInvitationFunc(ctx, invitationID)
	}
	return nil, nil
}

func (m *mockAccess) UpdateUserService(ctx context.Context, userID, serviceID, organisationID string, roleIDs []string, _ string) error {
	if m.updateUserServiceFunc != nil {
		return m.updateUserServiceFunc(ctx, userID, serviceID, organisationID, roleIDs)
	}
	return nil
}

func (m *mockAccess) UpdateInvitationService(ctx context.Context, invitationID, serviceID, organisationID string, roleIDs []string, _ string) error {
	if m.updateInvitationServiceFunc != nil {
		return m.updateInvitationServiceFunc(ctx, invitationID, serviceID, organisationID, roleIDs)
	}
	return nil
}

type mockApplications struct {
	getServiceFunc    func(ctx context.Context, serviceID string) (*clients.Service, error)
	updateServiceFunc func(ctx context.Context, serviceID string, update clients.ServiceUpdate) error
	listBannersFunc   func(ctx context.Context, serviceID string, page int) (*clients.BannerPage, error)
	getBannerFunc     func(ctx context.Context, serviceID, bannerID string) (*clients.Banner, error)
	upsertBannerFunc  func(ctx context.Context, serviceID string, banner clients.Banner) (*clients.Banner, error)
}

func (m *mockApplications) GetService(ctx context.Context, serviceID, _ string) (*clients.Service, error) {
	if m.getServiceFunc != nil {
		return m.getServiceFunc(ctx, serviceID)
	}
	return &clients.Service{ID: serviceID, Name: "Service " + serviceID}, nil
}

func (m *mockApplications) UpdateService(ctx context.Context, serviceID string, update clients.ServiceUpdate, _ string) error {
	if m.updateServiceFunc != nil {
		return m.updateServiceFunc(ctx, serviceID, update)
	}
	return nil
}

func (m *mockApplications) ListBanners(ctx context.Context, serviceID string, page int, _ string) (*clients.BannerPage, error) {
	if m.listBannersFunc != nil {
		return m.listBannersFunc(ctx, serviceID, page)
	}
	return &clients.BannerPage{Page: page}, nil
}

func (m *mockApplications) GetBanner(ctx context.Context, serviceID, bannerID, _ string) (*clients.Banner, error) {
	if m.getBannerFunc != nil {
		return m.getBannerFunc(ctx, serviceID, bannerID)
	}
	return nil, clients.ErrNotFound
}

func (m *mockApplications) UpsertBanner(ctx context.Context, serviceID string, banner clients.Banner, _ string) (*clients.Banner, error) {
	if m.upsertBannerFunc != nil {
		return m.upsertBannerFunc(ctx, serviceID, banner)
	}
	return &banner, nil
}

type mockOrganisations struct{}

func (mockOrganisations) GetOrganisation(_ context.Context, organisationID, _ string) (*clients.Organisation, error) {
	return &clients.Organisation{ID: organisationID, Name: "Organisation " + organisationID}, nil
}

type mockSearch struct {
	searchForUsersFunc func(ctx context.Context, params clients.SearchParams) (*clients.SearchResult, error)
}

func (m *mockSearch) SearchForUsers(ctx context.Context, params clients.SearchParams, _ string) (*clients.SearchResult, error) {
	if m.searchForUsersFunc != nil {
		return m.searchForUsersFunc(ctx, params)
	}
	return &clients.SearchResult{}, nil
}

func (m *mockSearch) GetUser(_ context.Context, userID, _ string) (*clients.SearchUser, error) {
	return &clients.SearchUser{ID: userID, Name: "Edited User", Email: "edited@example.test", StatusID: clients.StatusActive}, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Write(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) Events() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...)
}

// testApp is a router wired to mocks, with a signed-in browser.
type testApp struct {
	t        *testing.T
	handler  http.Handler
	sessions *session.Manager

	access       *mockAccess
	applications *mockApplications
	search       *mockSearch
	audit        *recordingAudit

	cookie *http.Cookie
	csrf   string
}

// newTestApp builds the router around mocks. configure adjusts the options
// before the router is assembled.
func newTestApp(t *testing.T, configure ...func(*RouterOptions)) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rend, err := views.New()
	require.NoError(t, err)
	policy, err := auth.NewFeaturePolicy(DefaultUserManagementRole)
	require.NoError(t, err)

	app := &testApp{
		t:            t,
		sessions:     session.NewManager(session.NewRedisStore(client, "test:session:"), session.Options{}),
		access:       &mockAccess{},
		applications: &mockApplications{},
		search:       &mockSearch{},
		audit:        &recordingAudit{},
	}
	opts := RouterOptions{
		Access:               app.access,
		Applications:         app.applications,
		Organisations:        mockOrganisations{},
		Search:               app.search,
		Views:                rend,
		Sessions:             app.sessions,
		Policy:               policy,
		Audit:                app.audit,
		ManageServiceID:      "manage",
		ManageOrganisationID: "manage-org",
	}
	for _, fn := range configure {
		fn(&opts)
	}
	app.handler = NewRouter(opts)
	return app
}

// login stores an authenticated session and grants the given manage role
// codes.
func (a *testApp) login(codes ...string) {
	a.t.Helper()

	sess, err := a.sessions.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(a.t, err)
	sess.Data.User = &session.Principal{
		Subject:    "manager-1",
		GivenName:  "Mia",
		FamilyName: "Manager",
		Email:      "mia@example.test",
	}

	rec := httptest.NewRecorder()
	require.NoError(a.t, sess.Save(context.Background(), rec))
	cookies := rec.Result().Cookies()
	require.Len(a.t, cookies, 1)

	a.cookie = cookies[0]
	a.csrf = sess.Data.CSRFToken
	a.access.managerRoles = codes
}

// session loads the browser's stored session.
func (a *testApp) session() *session.Data {
	a.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(a.cookie)
	sess, err := a.sessions.Load(req)
	require.NoError(a.t, err)
	return sess.Data
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	return a.do(http.MethodGet, path, nil)
}

// post submits form with the session's CSRF token unless form sets _csrf.
func (a *testApp) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	if _, ok := form["_csrf"]; !ok {
		form.Set("_csrf", a.csrf)
	}
	return a.do(http.MethodPost, path, form)
}

func (a *testApp) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}
