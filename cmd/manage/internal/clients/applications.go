package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RelyingParty holds a service's OIDC client settings.
type RelyingParty struct {
	ClientID               string   `json:"client_id,omitempty"`
	ServiceHome            string   `json:"service_home,omitempty"`
	PostResetURL           string   `json:"postResetUrl,omitempty"`
	RedirectURIs           []string `json:"redirect_uris"`
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris"`
}

// Service is a service record from the applications service.
type Service struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	IsExternal   bool         `json:"isExternalService,omitempty"`
	RelyingParty RelyingParty `json:"relyingParty"`
}

// ServiceUpdate is the patch body for UpdateService.
type ServiceUpdate struct {
	Name                   string   `json:"name"`
	Description            string   `json:"description"`
	ServiceHome            string   `json:"serviceHome"`
	PostResetURL           string   `json:"postResetUrl"`
	RedirectURIs           []string `json:"redirect_uris"`
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris"`
}

// Banner is a message shown to users of a service.
type Banner struct {
	ID        string     `json:"id,omitempty"`
	ServiceID string     `json:"serviceId,omitempty"`
	Name      string     `json:"name"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	ValidFrom *time.Time `json:"validFrom,omitempty"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
	IsActive  bool       `json:"isActive"`
}

// BannerPage is one page of a service's banners.
type BannerPage struct {
	Banners              []Banner `json:"banners"`
	Page                 int      `json:"page"`
	TotalNumberOfPages   int      `json:"totalNumberOfPages"`
	TotalNumberOfRecords int      `json:"totalNumberOfRecords"`
}

// ApplicationsClient talks to the applications service. Service records are
// cached briefly because every dashboard page needs the service name.
type ApplicationsClient struct {
	*baseClient
	services *expirable.LRU[string, *Service]
}

// NewApplicationsClient creates an applications service client with a
// service cache of cacheSize entries kept for cacheTTL. A zero cacheSize
// disables caching.
func NewApplicationsClient(opts Options, cacheSize int, cacheTTL time.Duration) (*ApplicationsClient, error) {
	base, err := newBaseClient("applications", opts)
	if err != nil {
		return nil, err
	}
	c := &ApplicationsClient{baseClient: base}
	if cacheSize > 0 {
		c.services = expirable.NewLRU[string, *Service](cacheSize, nil, cacheTTL)
	}
	return c, nil
}

func cacheKey(serviceID string) string {
	return strings.ToLower(serviceID)
}

// GetService returns the service record for serviceID.
func (c *ApplicationsClient) GetService(ctx context.Context, serviceID, correlationID string) (*Service, error) {
	if c.services != nil {
		if svc, ok := c.services.Get(cacheKey(serviceID)); ok {
			return svc, nil
		}
	}

	var svc Service
	path := fmt.Sprintf("/services/%s", escape(serviceID))
	if err := c.call(ctx, "GetService", http.MethodGet, path, nil, correlationID, nil, &svc); err != nil {
		return nil, err
	}

	if c.services != nil {
		c.services.Add(cacheKey(serviceID), &svc)
	}
	return &svc, nil
}

// UpdateService patches the service record and evicts it from the cache.
func (c *ApplicationsClient) UpdateService(ctx context.Context, serviceID string, update ServiceUpdate, correlationID string) error {
	path := fmt.Sprintf("/services/%s", escape(serviceID))
	err := c.call(ctx, "UpdateService", http.MethodPatch, path, nil, correlationID, update, nil)
	if c.services != nil {
		c.services.Remove(cacheKey(serviceID))
	}
	return err
}

// ListBanners returns one page (1-based) of the service's banners.
func (c *ApplicationsClient) ListBanners(ctx context.Context, serviceID string, page int, correlationID string) (*BannerPage, error) {
	if page < 1 {
		page = 1
	}
	var out BannerPage
	path := fmt.Sprintf("/services/%s/banners", escape(serviceID))
	query := url.Values{"page": {strconv.Itoa(page)}}
	if err := c.call(ctx, "ListBanners", http.MethodGet, path, query, correlationID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBanner returns a single banner.
func (c *ApplicationsClient) GetBanner(ctx context.Context, serviceID, bannerID, correlationID string) (*Banner, error) {
	var out Banner
	path := fmt.Sprintf("/services/%s/banners/%s", escape(serviceID), escape(bannerID))
	if err := c.call(ctx, "GetBanner", http.MethodGet, path, nil, correlationID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertBanner creates the banner when it has no ID, otherwise replaces it.
func (c *ApplicationsClient) UpsertBanner(ctx context.Context, serviceID string, banner Banner, correlationID string) (*Banner, error) {
	var out Banner
	path := fmt.Sprintf("/services/%s/banners", escape(serviceID))
	if err := c.call(ctx, "UpsertBanner", http.MethodPost, path, nil, correlationID, banner, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
