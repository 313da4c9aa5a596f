package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/audit"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/forms"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// invitationPrefix marks search results that are pending invitations.
const invitationPrefix = "inv-"

func invitationID(uid string) (string, bool) {
	return strings.CutPrefix(uid, invitationPrefix)
}

func userOrganisationsPath(sid, uid string) string {
	return fmt.Sprintf("/services/%s/users/%s/organisations", url.PathEscape(sid), url.PathEscape(uid))
}

func editServicePath(sid, uid, oid string) string {
	return userOrganisationsPath(sid, uid) + "/" + url.PathEscape(oid)
}

func (s *server) usersSearch(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sid := chi.URLParam(r, "sid")
	cid := correlationID(r)

	values := r.URL.Query()
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("parse form: %w", err)
		}
		values = r.PostForm
	}

	var form forms.UsersSearchForm
	if err := forms.Decode(values, &form); err != nil {
		logging.From(ctx).Debug("ignoring malformed search parameters", "error", err)
		form = forms.UsersSearchForm{Criteria: values.Get("criteria")}
	}
	form.Normalise()

	var (
		svc    *clients.Service
		result *clients.SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		svc, err = s.applications.GetService(gctx, sid, cid)
		return err
	})
	g.Go(func() (err error) {
		result, err = s.search.SearchForUsers(gctx, clients.SearchParams{
			Criteria:   form.Criteria,
			Page:       form.Page,
			SortBy:     form.SortBy,
			SortOrder:  form.SortOrder,
			ServiceIDs: []string{sid},
		}, cid)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("search users of %s: %w", sid, err)
	}

	return s.render(w, r, http.StatusOK, views.UsersSearch, "Users", views.UsersSearchModel{
		Service:              svc,
		Criteria:             form.Criteria,
		Page:                 form.Page,
		NumberOfPages:        result.NumberOfPages,
		TotalNumberOfResults: result.TotalNumberOfResults,
		SortBy:               form.SortBy,
		SortOrder:            form.SortOrder,
		Users:                result.Users,
	}, nil)
}

// servicesOf lists uid's assignments, following the invitation endpoint for
// invitation ids.
func (s *server) servicesOf(ctx context.Context, uid, cid string) ([]access.UserService, error) {
	if id, ok := invitationID(uid); ok {
		return s.access.GetServicesForInvitation(ctx, id, cid)
	}
	return s.access.GetServicesForUser(ctx, uid, cid)
}

func (s *server) userOrganisations(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sid, uid := chi.URLParam(r, "sid"), chi.URLParam(r, "uid")
	cid := correlationID(r)

	var (
		svc      *clients.Service
		user     *clients.SearchUser
		services []access.UserService
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		svc, err = s.applications.GetService(gctx, sid, cid)
		return err
	})
	g.Go(func() (err error) {
		user, err = s.search.GetUser(gctx, uid, cid)
		return err
	})
	g.Go(func() (err error) {
		services, err = s.servicesOf(gctx, uid, cid)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load user %s: %w", uid, err)
	}

	forService := lo.Filter(services, func(us access.UserService, _ int) bool {
		return strings.EqualFold(us.ServiceID, sid)
	})

	rows := make([]views.UserOrganisationRow, len(forService))
	og, octx := errgroup.WithContext(ctx)
	og.SetLimit(lookupConcurrency)
	for i, us := range forService {
		og.Go(func() error {
			org, err := s.organisations.GetOrganisation(octx, us.OrganisationID, cid)
			if err != nil {
				return fmt.Errorf("load organisation %s: %w", us.OrganisationID, err)
			}
			rows[i] = views.UserOrganisationRow{Organisation: org, Roles: us.Roles}
			return nil
		})
	}
	if err := og.Wait(); err != nil {
		return err
	}

	return s.render(w, r, http.StatusOK, views.UserOrganisations, user.Name, views.UserOrganisationsModel{
		Service:       svc,
		User:          user,
		Organisations: rows,
	}, nil)
}

// editTarget is the user, service and organisation a role edit applies to.
type editTarget struct {
	service      *clients.Service
	user         *clients.SearchUser
	organisation *clients.Organisation
	roles        []access.Role
	current      []string
}

func (s *server) loadEditTarget(ctx context.Context, sid, uid, oid, cid string) (*editTarget, error) {
	t := &editTarget{}
	var services []access.UserService

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t.service, err = s.applications.GetService(gctx, sid, cid)
		return err
	})
	g.Go(func() (err error) {
		t.user, err = s.search.GetUser(gctx, uid, cid)
		return err
	})
	g.Go(func() (err error) {
		t.organisation, err = s.organisations.GetOrganisation(gctx, oid, cid)
		return err
	})
	g.Go(func() (err error) {
		t.roles, err = s.access.ListRolesOfService(gctx, sid, cid)
		return err
	})
	g.Go(func() (err error) {
		services, err = s.servicesOf(gctx, uid, cid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load role edit for user %s: %w", uid, err)
	}

	if us, ok := lo.Find(services, func(us access.UserService) bool {
		return strings.EqualFold(us.ServiceID, sid) && strings.EqualFold(us.OrganisationID, oid)
	}); ok {
		t.current = lo.Map(us.Roles, func(role access.Role, _ int) string { return role.ID })
	}
	return t, nil
}

// pendingFor returns the pending role selection when it belongs to this
// user, service and organisation.
func pendingFor(sess *session.Session, sid, uid, oid string) (*session.PendingServiceRoles, bool) {
	p := sess.Data.Service
	if p == nil || p.UserID != uid || !strings.EqualFold(p.ServiceID, sid) || p.OrganisationID != oid {
		return nil, false
	}
	return p, true
}

func (s *server) getEditService(w http.ResponseWriter, r *http.Request) error {
	sid, uid, oid := chi.URLParam(r, "sid"), chi.URLParam(r, "uid"), chi.URLParam(r, "oid")

	t, err := s.loadEditTarget(r.Context(), sid, uid, oid, correlationID(r))
	if err != nil {
		return err
	}

	selected := t.current
	if sess, ok := session.FromContext(r.Context()); ok {
		if p, ok := pendingFor(sess, sid, uid, oid); ok {
			selected = p.RoleIDs
		}
	}

	return s.render(w, r, http.StatusOK, views.EditService, "Edit service", views.EditServiceModel{
		Service:      t.service,
		User:         t.user,
		Organisation: t.organisation,
		Roles:        t.roles,
		Selected:     selected,
	}, nil)
}

func (s *server) postEditService(w http.ResponseWriter, r *http.Request) error {
	sid, uid, oid := chi.URLParam(r, "sid"), chi.URLParam(r, "uid"), chi.URLParam(r, "oid")

	sess, ok := session.FromContext(r.Context())
	if !ok {
		return ErrNoSession
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	var form forms.EditServiceForm
	if err := forms.Decode(r.PostForm, &form); err != nil {
		return err
	}

	sess.Data.Service = &session.PendingServiceRoles{
		UserID:         uid,
		ServiceID:      sid,
		OrganisationID: oid,
		RoleIDs:        lo.Ternary(form.Roles == nil, []string{}, form.Roles),
	}
	if err := sess.Save(r.Context(), w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	http.Redirect(w, r, editServicePath(sid, uid, oid)+"/confirm-edit-service", http.StatusFound)
	return nil
}

func (s *server) getConfirmEditService(w http.ResponseWriter, r *http.Request) error {
	sid, uid, oid := chi.URLParam(r, "sid"), chi.URLParam(r, "uid"), chi.URLParam(r, "oid")

	sess, ok := session.FromContext(r.Context())
	if !ok {
		return ErrNoSession
	}
	pending, ok := pendingFor(sess, sid, uid, oid)
	if !ok {
		http.Redirect(w, r, editServicePath(sid, uid, oid), http.StatusFound)
		return nil
	}

	t, err := s.loadEditTarget(r.Context(), sid, uid, oid, correlationID(r))
	if err != nil {
		return err
	}

	roles := lo.Filter(t.roles, func(role access.Role, _ int) bool {
		return lo.Contains(pending.RoleIDs, role.ID)
	})
	return s.render(w, r, http.StatusOK, views.ConfirmEditService, "Confirm role changes", views.ConfirmEditServiceModel{
		Service:      t.service,
		User:         t.user,
		Organisation: t.organisation,
		Roles:        roles,
	}, nil)
}

func (s *server) postConfirmEditService(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sid, uid, oid := chi.URLParam(r, "sid"), chi.URLParam(r, "uid"), chi.URLParam(r, "oid")
	cid := correlationID(r)

	user, err := currentUser(r)
	if err != nil {
		return err
	}
	sess, _ := session.FromContext(ctx)
	pending, ok := pendingFor(sess, sid, uid, oid)
	if !ok {
		http.Redirect(w, r, editServicePath(sid, uid, oid), http.StatusFound)
		return nil
	}
	roleIDs := pending.RoleIDs

	if id, isInvitation := invitationID(uid); isInvitation {
		err = s.access.UpdateInvitationService(ctx, id, sid, oid, roleIDs, cid)
	} else {
		err = s.access.UpdateUserService(ctx, uid, sid, oid, roleIDs, cid)
	}
	if err != nil {
		return fmt.Errorf("update roles of %s on %s: %w", uid, sid, err)
	}

	svcName, orgName, editedEmail := s.describeEdit(ctx, sid, uid, oid, cid)
	s.audit.Write(ctx, audit.Event{
		Message: fmt.Sprintf("%s (id: %s) updated service %s for organisation %s (id: %s) for user %s (id: %s)",
			user.Email, user.Subject, svcName, orgName, oid, editedEmail, uid),
		Type:           audit.TypeManage,
		SubType:        audit.SubTypeUserServiceUpdated,
		UserID:         user.Subject,
		UserEmail:      user.Email,
		EditedUser:     uid,
		OrganisationID: oid,
		ServiceID:      sid,
		EditedFields: []audit.EditedField{
			{Name: "update_service", NewValue: roleIDs},
		},
	})

	sess.Data.Service = nil
	return s.redirectWithFlash(w, r, session.FlashInfo, "Service roles updated successfully", userOrganisationsPath(sid, uid))
}

// describeEdit resolves display names for the audit message. Lookups that
// fail fall back to the ids since the update has already been applied.
func (s *server) describeEdit(ctx context.Context, sid, uid, oid, cid string) (svcName, orgName, email string) {
	svcName, orgName, email = sid, oid, uid
	logger := logging.From(ctx)

	if svc, err := s.applications.GetService(ctx, sid, cid); err == nil {
		svcName = svc.Name
	} else {
		logger.Warn("audit: service lookup failed", "service_id", sid, "error", err)
	}
	if org, err := s.organisations.GetOrganisation(ctx, oid, cid); err == nil {
		orgName = org.Name
	} else {
		logger.Warn("audit: organisation lookup failed", "organisation_id", oid, "error", err)
	}
	if u, err := s.search.GetUser(ctx, uid, cid); err == nil {
		email = u.Email
	} else if !errors.Is(err, clients.ErrNotFound) {
		logger.Warn("audit: user lookup failed", "user_id", uid, "error", err)
	}
	return svcName, orgName, email
}
