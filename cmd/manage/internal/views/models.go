package views

import (
	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
	"github.com/manageconsole/manage/cmd/manage/internal/forms"
)

// ServiceOption is one entry of the service picker.
type ServiceOption struct {
	ID   string
	Name string
}

type SelectServiceModel struct {
	Services []ServiceOption
	Selected string
}

// Feature is a dashboard tile.
type Feature struct {
	Key         string
	Title       string
	Description string
	Href        string
}

type DashboardModel struct {
	Service  *clients.Service
	Features []Feature
}

type ServiceConfigModel struct {
	Service *clients.Service
	Form    forms.ServiceConfigForm
}

type ServiceBannersModel struct {
	Service              *clients.Service
	Banners              []clients.Banner
	Page                 int
	NumberOfPages        int
	TotalNumberOfRecords int
}

type EditBannerModel struct {
	Service  *clients.Service
	BannerID string
	IsNew    bool
	Form     forms.BannerForm
}

type UsersSearchModel struct {
	Service              *clients.Service
	Criteria             string
	Page                 int
	NumberOfPages        int
	TotalNumberOfResults int
	SortBy               string
	SortOrder            string
	Users                []clients.SearchUser
}

// UserOrganisationRow is one organisation a user holds this service in.
type UserOrganisationRow struct {
	Organisation *clients.Organisation
	Roles        []access.Role
}

type UserOrganisationsModel struct {
	Service       *clients.Service
	User          *clients.SearchUser
	Organisations []UserOrganisationRow
}

type EditServiceModel struct {
	Service      *clients.Service
	User         *clients.SearchUser
	Organisation *clients.Organisation
	Roles        []access.Role
	Selected     []string
}

type ConfirmEditServiceModel struct {
	Service      *clients.Service
	User         *clients.SearchUser
	Organisation *clients.Organisation
	Roles        []access.Role
}
