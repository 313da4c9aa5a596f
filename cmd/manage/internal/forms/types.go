package forms

import (
	"github.com/go-playground/validator/v10"
)

// Banner display modes.
const (
	DisplayUntilRemoved = "untilRemoved"
	DisplayBetweenDates = "betweenDates"
)

// SelectServiceForm picks the service to manage.
type SelectServiceForm struct {
	SelectedService string `mapstructure:"selectedService" validate:"required"`
}

func (SelectServiceForm) Messages() map[string]string {
	return map[string]string{"selectedService.required": "Please select a service"}
}

// SelectBannerForm picks a banner to edit, or "new".
type SelectBannerForm struct {
	SelectedBanner string `mapstructure:"selectedBanner" validate:"required"`
}

func (SelectBannerForm) Messages() map[string]string {
	return map[string]string{"selectedBanner.required": "Please select a banner"}
}

// NewBannerOption is the SelectedBanner value that starts a new banner.
const NewBannerOption = "new"

// ServiceConfigForm edits a service's relying party settings.
// Redirect URI lists arrive as one URL per line.
type ServiceConfigForm struct {
	Name                   string   `mapstructure:"name" validate:"required,max=200"`
	Description            string   `mapstructure:"description" validate:"max=1000"`
	ServiceHome            string   `mapstructure:"serviceHome" validate:"omitempty,httpurl"`
	PostResetURL           string   `mapstructure:"postResetUrl" validate:"omitempty,httpurl"`
	RedirectURIs           []string `mapstructure:"redirect_uris" validate:"dive,httpurl"`
	PostLogoutRedirectURIs []string `mapstructure:"post_logout_redirect_uris" validate:"dive,httpurl"`
}

func (ServiceConfigForm) Messages() map[string]string {
	return map[string]string{
		"name.required":                     "Service name must be present",
		"serviceHome.httpurl":               "Home url must be a valid url",
		"postResetUrl.httpurl":              "Post password-reset url must be a valid url",
		"redirect_uris.httpurl":             "Redirect urls must be valid urls",
		"post_logout_redirect_uris.httpurl": "Logout redirect urls must be valid urls",
	}
}

// BannerForm creates or edits a service banner.
type BannerForm struct {
	Name        string `mapstructure:"bannerName" validate:"required,max=255"`
	Title       string `mapstructure:"bannerTitle" validate:"required,max=255"`
	Message     string `mapstructure:"bannerMessage" validate:"required"`
	DisplayMode string `mapstructure:"bannerDisplay" validate:"required,oneof=untilRemoved betweenDates"`
	ValidFrom   string `mapstructure:"validFrom" validate:"omitempty,datetime=2006-01-02"`
	ValidTo     string `mapstructure:"validTo" validate:"omitempty,datetime=2006-01-02"`
}

func (BannerForm) Messages() map[string]string {
	return map[string]string{
		"bannerName.required":    "Enter a banner name",
		"bannerTitle.required":   "Enter a banner title",
		"bannerMessage.required": "Enter a banner message",
		"bannerDisplay.required": "Select when the banner should be displayed",
		"validFrom.required":     "Enter a from date",
		"validTo.required":       "Enter a to date",
		"validTo.after":          "To date must be after from date",
	}
}

func validateBannerDates(sl validator.StructLevel) {
	f := sl.Current().Interface().(BannerForm)
	if f.DisplayMode != DisplayBetweenDates {
		return
	}
	if f.ValidFrom == "" {
		sl.ReportError(f.ValidFrom, "validFrom", "ValidFrom", "required", "")
	}
	if f.ValidTo == "" {
		sl.ReportError(f.ValidTo, "validTo", "ValidTo", "required", "")
	}
	from, errFrom := ParseDate(f.ValidFrom)
	to, errTo := ParseDate(f.ValidTo)
	if errFrom != nil || errTo != nil || from == nil || to == nil {
		return
	}
	if !to.After(*from) {
		sl.ReportError(f.ValidTo, "validTo", "ValidTo", "after", "")
	}
}

// EditServiceForm carries the role ids ticked for a user.
type EditServiceForm struct {
	Roles []string `mapstructure:"role"`
}

// UsersSearchForm holds search criteria from the query string or a POST.
type UsersSearchForm struct {
	Criteria  string `mapstructure:"criteria"`
	Page      int    `mapstructure:"page"`
	SortBy    string `mapstructure:"sort"`
	SortOrder string `mapstructure:"sortDir"`
}

// Normalise applies defaults: page 1, sort by name ascending.
func (f *UsersSearchForm) Normalise() {
	if f.Page < 1 {
		f.Page = 1
	}
	switch f.SortBy {
	case "name", "email", "organisation", "lastlogin", "status":
	default:
		f.SortBy = "name"
	}
	if f.SortOrder != "desc" {
		f.SortOrder = "asc"
	}
}
