package server

import (
	"context"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
	"github.com/manageconsole/manage/cmd/manage/internal/clients"
)

// accessService is the subset of the access client the handlers use.
type accessService interface {
	GetSingleUserService(ctx context.Context, userID, serviceID, organisationID, correlationID string) (*access.UserServiceContext, error)
	ListRolesOfService(ctx context.Context, serviceID, correlationID string) ([]access.Role, error)
	GetServicesForUser(ctx context.Context, userID, correlationID string) ([]access.UserService, error)
	GetServicesForInvitation(ctx context.Context, invitationID, correlationID string) ([]access.UserService, error)
	UpdateUserService(ctx context.Context, userID, serviceID, organisationID string, roleIDs []string, correlationID string) error
	UpdateInvitationService(ctx context.Context, invitationID, serviceID, organisationID string, roleIDs []string, correlationID string) error
}

type applicationsService interface {
	GetService(ctx context.Context, serviceID, correlationID string) (*clients.Service, error)
	UpdateService(ctx context.Context, serviceID string, update clients.ServiceUpdate, correlationID string) error
	ListBanners(ctx context.Context, serviceID string, page int, correlationID string) (*clients.BannerPage, error)
	GetBanner(ctx context.Context, serviceID, bannerID, correlationID string) (*clients.Banner, error)
	UpsertBanner(ctx context.Context, serviceID string, banner clients.Banner, correlationID string) (*clients.Banner, error)
}

type organisationsService interface {
	GetOrganisation(ctx context.Context, organisationID, correlationID string) (*clients.Organisation, error)
}

type searchService interface {
	SearchForUsers(ctx context.Context, params clients.SearchParams, correlationID string) (*clients.SearchResult, error)
	GetUser(ctx context.Context, userID, correlationID string) (*clients.SearchUser, error)
}

// Compile-time verification that the HTTP clients satisfy the contracts.
var (
	_ accessService        = (*clients.AccessClient)(nil)
	_ applicationsService  = (*clients.ApplicationsClient)(nil)
	_ organisationsService = (*clients.OrganisationsClient)(nil)
	_ searchService        = (*clients.SearchClient)(nil)
)
