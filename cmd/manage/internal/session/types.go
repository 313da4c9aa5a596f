package session

import "strings"

// Flash kinds rendered by the layout.
const (
	FlashInfo  = "info"
	FlashError = "error"
)

// Principal is the signed-in user as described by the identity provider.
type Principal struct {
	Subject    string `json:"sub"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Email      string `json:"email,omitempty"`
}

// DisplayName joins the given and family names.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.GivenName + " " + p.FamilyName)
}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PendingServiceRoles holds a role selection between the edit and confirm
// steps of the user service workflow.
type PendingServiceRoles struct {
	UserID         string   `json:"uid"`
	ServiceID      string   `json:"sid"`
	OrganisationID string   `json:"oid"`
	RoleIDs        []string `json:"roles"`
}

// Data is everything persisted for one browser session.
type Data struct {
	User *Principal `json:"user,omitempty"`

	// IDToken is kept for RP-initiated logout.
	IDToken string `json:"id_token,omitempty"`

	// RedirectURL is where to send the user after sign-in.
	RedirectURL string `json:"redirect_url,omitempty"`

	CSRFToken string `json:"csrf_token"`

	Flashes []Flash `json:"flash,omitempty"`

	Service *PendingServiceRoles `json:"service,omitempty"`

	// CreatedAt is when the session was created (Unix timestamp).
	CreatedAt int64 `json:"created_at"`
}

// Authenticated reports whether a principal is attached.
func (d *Data) Authenticated() bool {
	return d != nil && d.User != nil && d.User.Subject != ""
}
