package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/manageconsole/manage/cmd/manage/internal/access"
)

// AccessClient talks to the access service, which owns role assignments.
type AccessClient struct {
	*baseClient
}

// NewAccessClient creates an access service client.
func NewAccessClient(opts Options) (*AccessClient, error) {
	base, err := newBaseClient("access", opts)
	if err != nil {
		return nil, err
	}
	return &AccessClient{baseClient: base}, nil
}

// GetSingleUserService returns the roles userID holds on serviceID within
// organisationID. A 404 is returned as ErrNotFound.
func (c *AccessClient) GetSingleUserService(ctx context.Context, userID, serviceID, organisationID, correlationID string) (*access.UserServiceContext, error) {
	path := fmt.Sprintf("/users/%s/services/%s/organisations/%s", escape(userID), escape(serviceID), escape(organisationID))

	var usc access.UserServiceContext
	if err := c.call(ctx, "GetSingleUserService", http.MethodGet, path, nil, correlationID, nil, &usc); err != nil {
		return nil, err
	}
	return &usc, nil
}

// ListRolesOfService lists every role defined for serviceID.
func (c *AccessClient) ListRolesOfService(ctx context.Context, serviceID, correlationID string) ([]access.Role, error) {
	var roles []access.Role
	path := fmt.Sprintf("/services/%s/roles", escape(serviceID))
	if err := c.call(ctx, "ListRolesOfService", http.MethodGet, path, nil, correlationID, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetServicesForUser lists the user's service assignments across
// organisations. A user with none yields an empty slice.
func (c *AccessClient) GetServicesForUser(ctx context.Context, userID, correlationID string) ([]access.UserService, error) {
	var services []access.UserService
	path := fmt.Sprintf("/users/%s/services", escape(userID))
	err := c.call(ctx, "GetServicesForUser", http.MethodGet, path, nil, correlationID, nil, &services)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return services, err
}

// GetServicesForInvitation lists the invitation's pending service assignments.
func (c *AccessClient) GetServicesForInvitation(ctx context.Context, invitationID, correlationID string) ([]access.UserService, error) {
	var services []access.UserService
	path := fmt.Sprintf("/invitations/%s/services", escape(invitationID))
	err := c.call(ctx, "GetServicesForInvitation", http.MethodGet, path, nil, correlationID, nil, &services)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return services, err
}

type updateServiceRolesRequest struct {
	Roles []string `json:"roles"`
}

// UpdateUserService replaces the roles userID holds on serviceID within organisationID.
func (c *AccessClient) UpdateUserService(ctx context.Context, userID, serviceID, organisationID string, roleIDs []string, correlationID string) error {
	path := fmt.Sprintf("/users/%s/services/%s/organisations/%s", escape(userID), escape(serviceID), escape(organisationID))
	return c.call(ctx, "UpdateUserService", http.MethodPatch, path, nil, correlationID, updateServiceRolesRequest{Roles: nonNil(roleIDs)}, nil)
}

// UpdateInvitationService replaces the roles an invitation carries for serviceID within organisationID.
func (c *AccessClient) UpdateInvitationService(ctx context.Context, invitationID, serviceID, organisationID string, roleIDs []string, correlationID string) error {
	path := fmt.Sprintf("/invitations/%s/services/%s/organisations/%s", escape(invitationID), escape(serviceID), escape(organisationID))
	return c.call(ctx, "UpdateInvitationService", http.MethodPatch, path, nil, correlationID, updateServiceRolesRequest{Roles: nonNil(roleIDs)}, nil)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
