package clients

import (
	"context"
	"fmt"
	"net/http"
)

// OrganisationCategory classifies an organisation.
type OrganisationCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Organisation is an organisation record.
type Organisation struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	URN      string                `json:"urn,omitempty"`
	UKPRN    string                `json:"ukprn,omitempty"`
	Category *OrganisationCategory `json:"category,omitempty"`
}

// OrganisationsClient talks to the organisations service.
type OrganisationsClient struct {
	*baseClient
}

// NewOrganisationsClient creates an organisations service client.
func NewOrganisationsClient(opts Options) (*OrganisationsClient, error) {
	base, err := newBaseClient("organisations", opts)
	if err != nil {
		return nil, err
	}
	return &OrganisationsClient{baseClient: base}, nil
}

// GetOrganisation returns the organisation with the given id.
func (c *OrganisationsClient) GetOrganisation(ctx context.Context, organisationID, correlationID string) (*Organisation, error) {
	var org Organisation
	path := fmt.Sprintf("/organisations/v2/%s", escape(organisationID))
	if err := c.call(ctx, "GetOrganisation", http.MethodGet, path, nil, correlationID, nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}
