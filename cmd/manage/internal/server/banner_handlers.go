package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/manageconsole/manage/cmd/manage/internal/audit"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/forms"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
	"github.com/manageconsole/manage/cmd/manage/internal/views"
)

func bannersPath(sid string) string {
	return "/services/" + url.PathEscape(sid) + "/service-banners"
}

func (s *server) bannersModel(r *http.Request, sid string) (views.ServiceBannersModel, error) {
	ctx := r.Context()
	cid := correlationID(r)

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	svc, err := s.applications.GetService(ctx, sid, cid)
	if err != nil {
		return views.ServiceBannersModel{}, fmt.Errorf("load service %s: %w", sid, err)
	}
	banners, err := s.applications.ListBanners(ctx, sid, page, cid)
	if err != nil {
		return views.ServiceBannersModel{}, fmt.Errorf("list banners for %s: %w", sid, err)
	}

	return views.ServiceBannersModel{
		Service:              svc,
		Banners:              banners.Banners,
		Page:                 page,
		NumberOfPages:        banners.TotalNumberOfPages,
		TotalNumberOfRecords: banners.TotalNumberOfRecords,
	}, nil
}

func (s *server) getServiceBanners(w http.ResponseWriter, r *http.Request) error {
	model, err := s.bannersModel(r, chi.URLParam(r, "sid"))
	if err != nil {
		return err
	}
	return s.render(w, r, http.StatusOK, views.ServiceBanners, "Service banners", model, nil)
}

func (s *server) postServiceBanners(w http.ResponseWriter, r *http.Request) error {
	sid := chi.URLParam(r, "sid")
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	var form forms.SelectBannerForm
	if err := forms.Decode(r.PostForm, &form); err != nil {
		return err
	}

	if msgs := forms.Validate(form); msgs != nil {
		model, err := s.bannersModel(r, sid)
		if err != nil {
			return err
		}
		return s.render(w, r, http.StatusBadRequest, views.ServiceBanners, "Service banners", model, msgs)
	}

	target := bannersPath(sid) + "/new-banner"
	if form.SelectedBanner != forms.NewBannerOption {
		target = bannersPath(sid) + "/" + url.PathEscape(form.SelectedBanner)
	}
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}

func bannerForm(b *clients.Banner) forms.BannerForm {
	form := forms.BannerForm{
		Name:        b.Name,
		Title:       b.Title,
		Message:     b.Message,
		DisplayMode: forms.DisplayUntilRemoved,
	}
	if b.ValidFrom != nil && b.ValidTo != nil {
		form.DisplayMode = forms.DisplayBetweenDates
		form.ValidFrom = b.ValidFrom.Format(forms.DateLayout)
		form.ValidTo = b.ValidTo.Format(forms.DateLayout)
	}
	return form
}

func (s *server) getEditBanner(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sid, bid := chi.URLParam(r, "sid"), chi.URLParam(r, "bid")
	cid := correlationID(r)

	svc, err := s.applications.GetService(ctx, sid, cid)
	if err != nil {
		return fmt.Errorf("load service %s: %w", sid, err)
	}

	model := views.EditBannerModel{Service: svc, BannerID: bid, IsNew: bid == ""}
	if !model.IsNew {
		banner, err := s.applications.GetBanner(ctx, sid, bid, cid)
		if err != nil {
			return fmt.Errorf("load banner %s: %w", bid, err)
		}
		model.Form = bannerForm(banner)
	}

	return s.render(w, r, http.StatusOK, views.EditBanner, "Service banner", model, nil)
}

func (s *server) postEditBanner(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	sid, bid := chi.URLParam(r, "sid"), chi.URLParam(r, "bid")
	cid := correlationID(r)

	user, err := currentUser(r)
	if err != nil {
		return err
	}

	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	var form forms.BannerForm
	if err := forms.Decode(r.PostForm, &form); err != nil {
		return err
	}
	if msgs := forms.Validate(form); msgs != nil {
		svc, err := s.applications.GetService(ctx, sid, cid)
		if err != nil {
			return fmt.Errorf("load service %s: %w", sid, err)
		}
		model := views.EditBannerModel{Service: svc, BannerID: bid, IsNew: bid == "", Form: form}
		return s.render(w, r, http.StatusBadRequest, views.EditBanner, "Service banner", model, msgs)
	}

	banner := clients.Banner{
		ID:        bid,
		ServiceID: sid,
		Name:      form.Name,
		Title:     form.Title,
		Message:   form.Message,
		IsActive:  form.DisplayMode == forms.DisplayUntilRemoved,
	}
	if form.DisplayMode == forms.DisplayBetweenDates {
		// Both dates already passed validation.
		banner.ValidFrom, _ = forms.ParseDate(form.ValidFrom)
		banner.ValidTo, _ = forms.ParseDate(form.ValidTo)
	}

	saved, err := s.applications.UpsertBanner(ctx, sid, banner, cid)
	if err != nil {
		return fmt.Errorf("save banner for %s: %w", sid, err)
	}

	subType, verb := audit.SubTypeServiceBannerUpdated, "updated"
	if bid == "" {
		subType, verb = audit.SubTypeServiceBannerCreated, "created"
	}
	savedID := bid
	if saved != nil && saved.ID != "" {
		savedID = saved.ID
	}
	s.audit.Write(ctx, audit.Event{
		Message:   fmt.Sprintf("%s (id: %s) %s banner %s (id: %s) for service %s", user.Email, user.Subject, verb, form.Name, savedID, sid),
		Type:      audit.TypeManage,
		SubType:   subType,
		UserID:    user.Subject,
		UserEmail: user.Email,
		ServiceID: sid,
		EditedFields: []audit.EditedField{
			{Name: "banner", NewValue: banner},
		},
	})

	return s.redirectWithFlash(w, r, session.FlashInfo, fmt.Sprintf("%s banner saved", form.Name), bannersPath(sid))
}
