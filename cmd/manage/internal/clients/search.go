package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// User status codes used by the search index.
const (
	StatusDeactivatedInvitation = -2
	StatusInvited               = -1
	StatusDeactivated           = 0
	StatusActive                = 1
)

// UserStatus is a status code with its display text.
type UserStatus struct {
	ID          int        `json:"id"`
	Description string     `json:"description"`
	ChangedOn   *time.Time `json:"changedOn,omitempty"`
}

// MapUserStatus converts a raw status code into its display form. Any code
// other than the three inactive ones is reported as active.
func MapUserStatus(status int, changedOn *time.Time) UserStatus {
	switch status {
	case StatusDeactivatedInvitation:
		return UserStatus{ID: StatusDeactivatedInvitation, Description: "Deactivated Invitation", ChangedOn: changedOn}
	case StatusInvited:
		return UserStatus{ID: StatusInvited, Description: "Invited", ChangedOn: changedOn}
	case StatusDeactivated:
		return UserStatus{ID: StatusDeactivated, Description: "Deactivated", ChangedOn: changedOn}
	default:
		return UserStatus{ID: StatusActive, Description: "Active", ChangedOn: changedOn}
	}
}

// UserOrganisation is the primary organisation of a search result.
type UserOrganisation struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// SearchUser is one user (or invitation, with an "inv-" prefixed ID) from the search index.
type SearchUser struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	FirstName       string             `json:"firstName"`
	LastName        string             `json:"lastName"`
	Email           string             `json:"email"`
	Organisation    *UserOrganisation  `json:"primaryOrganisation,omitempty"`
	Organisations   []UserOrganisation `json:"organisations,omitempty"`
	LastLogin       *time.Time         `json:"lastLogin,omitempty"`
	StatusID        int                `json:"statusId"`
	StatusChangedOn *time.Time         `json:"statusLastChangedOn,omitempty"`
}

// Status maps the raw status code for display.
func (u SearchUser) Status() UserStatus {
	return MapUserStatus(u.StatusID, u.StatusChangedOn)
}

// SearchParams selects a page of users.
type SearchParams struct {
	Criteria   string
	Page       int
	SortBy     string
	SortOrder  string
	ServiceIDs []string
}

// SearchResult is one page of users.
type SearchResult struct {
	Users                []SearchUser `json:"users"`
	NumberOfPages        int          `json:"numberOfPages"`
	TotalNumberOfResults int          `json:"totalNumberOfResults"`
}

// SearchClient talks to the search service.
type SearchClient struct {
	*baseClient
}

// NewSearchClient creates a search service client.
func NewSearchClient(opts Options) (*SearchClient, error) {
	base, err := newBaseClient("search", opts)
	if err != nil {
		return nil, err
	}
	return &SearchClient{baseClient: base}, nil
}

// SearchForUsers returns one page of users matching params.
func (c *SearchClient) SearchForUsers(ctx context.Context, params SearchParams, correlationID string) (*SearchResult, error) {
	query := url.Values{}
	if params.Criteria != "" {
		query.Set("criteria", params.Criteria)
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	query.Set("page", strconv.Itoa(page))
	if params.SortBy != "" {
		query.Set("sortBy", params.SortBy)
	}
	if params.SortOrder != "" {
		query.Set("sortDirection", params.SortOrder)
	}
	for _, sid := range params.ServiceIDs {
		query.Add("filter_services", sid)
	}

	var out SearchResult
	if err := c.call(ctx, "SearchForUsers", http.MethodGet, "/users", query, correlationID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser returns a single indexed user.
func (c *SearchClient) GetUser(ctx context.Context, userID, correlationID string) (*SearchUser, error) {
	var out SearchUser
	path := fmt.Sprintf("/users/%s", escape(userID))
	if err := c.call(ctx, "GetUser", http.MethodGet, path, nil, correlationID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
