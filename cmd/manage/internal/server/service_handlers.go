package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/audit"
	"github.com/manageconsole/manage/cmd/manage/internal/auth"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/forms"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

// lookupConcurrency bounds parallel upstream calls made by one request.
const lookupConcurrency = 8

// root sends the user to their only service, or to the picker when they
// hold more than one assignment.
func (s *server) root(w http.ResponseWriter, r *http.Request) error {
	usc := userServices(r)
	if !usc.HasRoles() {
		s.guards.NotAuthorised(w, r)
		return nil
	}

	if len(usc.Roles) == 1 {
		rc, err := usc.Roles[0].Decode()
		if err != nil {
			logging.From(r.Context()).Warn("cannot route malformed role code", "code", usc.Roles[0].Code, "error", err)
			s.guards.NotAuthorised(w, r)
			return nil
		}
		http.Redirect(w, r, "/services/"+url.PathEscape(rc.ServiceID), http.StatusFound)
		return nil
	}

	http.Redirect(w, r, "/services/select-service", http.StatusFound)
	return nil
}

// serviceOptions resolves a display name for every service the user holds a
// role on, sorted by name.
func (s *server) serviceOptions(ctx context.Context, usc *access.UserServiceContext, cid string) ([]views.ServiceOption, error) {
	ids := usc.ServiceIDs()
	options := make([]views.ServiceOption, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			svc, err := s.applications.GetService(gctx, id, cid)
			switch {
			case errors.Is(err, clients.ErrNotFound):
				options[i] = views.ServiceOption{ID: id, Name: id}
				return nil
			case err != nil:
				return err
			}
			options[i] = views.ServiceOption{ID: id, Name: svc.Name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve service names: %w", err)
	}

	slices.SortFunc(options, func(a, b views.ServiceOption) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return options, nil
}

func (s *server) getSelectService(w http.ResponseWriter, r *http.Request) error {
	options, err := s.serviceOptions(r.Context(), userServices(r), correlationID(r))
	if err != nil {
		return err
	}
	return s.render(w, r, http.StatusOK, views.SelectService, "Select service", views.SelectServiceModel{Services: options}, nil)
}

func (s *server) postSelectService(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	var form forms.SelectServiceForm
	if err := forms.Decode(r.PostForm, &form); err != nil {
		return err
	}

	if msgs := forms.Validate(form); msgs != nil {
		options, err := s.serviceOptions(r.Context(), userServices(r), correlationID(r))
		if err != nil {
			return err
		}
		return s.render(w, r, http.StatusBadRequest, views.SelectService, "Select service", views.SelectServiceModel{Services: options}, msgs)
	}

	http.Redirect(w, r, "/services/"+url.PathEscape(form.SelectedService), http.StatusFound)
	return nil
}

var featureTiles = map[string]views.Feature{
	auth.FeatureServiceConfiguration: {
		Title:       "Service configuration",
		Description: "Edit the service name, description and redirect URLs.",
	},
	auth.FeatureServiceBanners: {
		Title:       "Service banners",
		Description: "Create and edit messages shown to users of the service.",
	},
	auth.FeatureUsers: {
		Title:       "Users",
		Description: "Search for users of the service and edit their roles.",
	},
}

func (s *server) dashboard(w http.ResponseWriter, r *http.Request) error {
	sid := chi.URLParam(r, "sid")
	svc, err := s.applications.GetService(r.Context(), sid, correlationID(r))
	if err != nil {
		return fmt.Errorf("load service %s: %w", sid, err)
	}

	roleNames := userServices(r).RoleNamesForService(sid)
	features := lo.Map(s.policy.Features(roleNames), func(key string, _ int) views.Feature {
		f := featureTiles[key]
		f.Key = key
		f.Href = fmt.Sprintf("/services/%s/%s", url.PathEscape(sid), key)
		return f
	})

	return s.render(w, r, http.StatusOK, views.Dashboard, svc.Name, views.DashboardModel{Service: svc, Features: features}, nil)
}

func (s *server) getServiceConfig(w http.ResponseWriter, r *http.Request) error {
	sid := chi.URLParam(r, "sid")
	svc, err := s.applications.GetService(r.Context(), sid, correlationID(r))
	if err != nil {
		return fmt.Errorf("load service %s: %w", sid, err)
	}

	form := forms.ServiceConfigForm{
		Name:                   svc.Name,
		Description:            svc.Description,
		ServiceHome:            svc.RelyingParty.ServiceHome,
		PostResetURL:           svc.RelyingParty.PostResetURL,
		RedirectURIs:           svc.RelyingParty.RedirectURIs,
		PostLogoutRedirectURIs: svc.RelyingParty.PostLogoutRedirectURIs,
	}
	return s.render(w, r, http.StatusOK, views.ServiceConfig, "Service configuration", views.ServiceConfigModel{Service: svc, Form: form}, nil)
}

func (s *server) postServiceConfig(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sid := chi.URLParam(r, "sid")
	cid := correlationID(r)

	user, err := currentUser(r)
	if err != nil {
		return err
	}
	svc, err := s.applications.GetService(ctx, sid, cid)
	if err != nil {
		return fmt.Errorf("load service %s: %w", sid, err)
	}

	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	var form forms.ServiceConfigForm
	if err := forms.Decode(r.PostForm, &form); err != nil {
		return err
	}
	if msgs := forms.Validate(form); msgs != nil {
		return s.render(w, r, http.StatusBadRequest, views.ServiceConfig, "Service configuration", views.ServiceConfigModel{Service: svc, Form: form}, msgs)
	}

	update := clients.ServiceUpdate{
		Name:                   form.Name,
		Description:            form.Description,
		ServiceHome:            form.ServiceHome,
		PostResetURL:           form.PostResetURL,
		RedirectURIs:           lo.Ternary(form.RedirectURIs == nil, []string{}, form.RedirectURIs),
		PostLogoutRedirectURIs: lo.Ternary(form.PostLogoutRedirectURIs == nil, []string{}, form.PostLogoutRedirectURIs),
	}
	if err := s.applications.UpdateService(ctx, sid, update, cid); err != nil {
		return fmt.Errorf("update service %s: %w", sid, err)
	}

	s.audit.Write(ctx, audit.Event{
		Message:      fmt.Sprintf("%s (id: %s) updated service configuration for service %s (id: %s)", user.Email, user.Subject, svc.Name, sid),
		Type:         audit.TypeManage,
		SubType:      audit.SubTypeServiceConfigUpdated,
		UserID:       user.Subject,
		UserEmail:    user.Email,
		ServiceID:    sid,
		EditedFields: serviceConfigChanges(svc, update),
	})

	return s.redirectWithFlash(w, r, session.FlashInfo, "Service configuration updated successfully", "/services/"+url.PathEscape(sid))
}

// serviceConfigChanges lists the fields update changes on svc.
func serviceConfigChanges(svc *clients.Service, update clients.ServiceUpdate) []audit.EditedField {
	var changes []audit.EditedField
	str := func(name, before, after string) {
		if before != after {
			changes = append(changes, audit.EditedField{Name: name, OldValue: before, NewValue: after})
		}
	}
	list := func(name string, before, after []string) {
		if !slices.Equal(before, after) {
			changes = append(changes, audit.EditedField{Name: name, OldValue: before, NewValue: after})
		}
	}

	str("name", svc.Name, update.Name)
	str("description", svc.Description, update.Description)
	str("serviceHome", svc.RelyingParty.ServiceHome, update.ServiceHome)
	str("postResetUrl", svc.RelyingParty.PostResetURL, update.PostResetURL)
	list("redirect_uris", svc.RelyingParty.RedirectURIs, update.RedirectURIs)
	list("post_logout_redirect_uris", svc.RelyingParty.PostLogoutRedirectURIs, update.PostLogoutRedirectURIs)
	return changes
}
