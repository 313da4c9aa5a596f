package access

import (
	"context"
	"strings"
)

// RoleStatus is the lifecycle status attached to a role by the access service.
type RoleStatus struct {
	ID int `json:"id"`
}

// Role is a single role assignment returned by the access service.
// Only Code is meaningful for authorization.
type Role struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Code      string     `json:"code"`
	NumericID string     `json:"numericId,omitempty"`
	Status    RoleStatus `json:"status"`
}

// Decode parses the role's compound code.
func (r Role) Decode() (RoleCode, error) {
	return ParseRoleCode(r.Code)
}

// UserServiceContext is the set of role assignments a principal holds,
// resolved once per request and never persisted.
type UserServiceContext struct {
	UserID         string `json:"userId"`
	ServiceID      string `json:"serviceId"`
	OrganisationID string `json:"organisationId"`
	Roles          []Role `json:"roles"`
}

// HasRoles reports whether the context carries at least one assignment.
// A nil context has none.
func (u *UserServiceContext) HasRoles() bool {
	return u != nil && len(u.Roles) > 0
}

// DecodedRoles returns the successfully decoded role codes in assignment
// order, together with the raw codes that failed to decode.
func (u *UserServiceContext) DecodedRoles() ([]RoleCode, []string) {
	if u == nil {
		return nil, nil
	}
	decoded := make([]RoleCode, 0, len(u.Roles))
	var malformed []string
	for _, role := range u.Roles {
		rc, err := role.Decode()
		if err != nil {
			malformed = append(malformed, role.Code)
			continue
		}
		decoded = append(decoded, rc)
	}
	return decoded, malformed
}

// ManagesService reports whether any assignment's service identifier matches
// serviceID, ignoring case.
func (u *UserServiceContext) ManagesService(serviceID string) bool {
	decoded, _ := u.DecodedRoles()
	for _, rc := range decoded {
		if strings.EqualFold(rc.ServiceID, serviceID) {
			return true
		}
	}
	return false
}

// HasRoleName reports whether any assignment's role name equals roleName.
func (u *UserServiceContext) HasRoleName(roleName string) bool {
	decoded, _ := u.DecodedRoles()
	for _, rc := range decoded {
		if rc.RoleName == roleName {
			return true
		}
	}
	return false
}

// RoleNamesForService lists the role names held on serviceID, ignoring case
// on the service identifier.
func (u *UserServiceContext) RoleNamesForService(serviceID string) []string {
	decoded, _ := u.DecodedRoles()
	var names []string
	for _, rc := range decoded {
		if strings.EqualFold(rc.ServiceID, serviceID) {
			names = append(names, rc.RoleName)
		}
	}
	return names
}

// ServiceIDs returns the distinct service identifiers across all decodable
// assignments, in first-seen order.
func (u *UserServiceContext) ServiceIDs() []string {
	decoded, _ := u.DecodedRoles()
	seen := make(map[string]struct{}, len(decoded))
	var ids []string
	for _, rc := range decoded {
		key := strings.ToLower(rc.ServiceID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, rc.ServiceID)
	}
	return ids
}

type userServicesContextKey struct{}

// WithUserServices attaches the resolved User Service Context to ctx.
func WithUserServices(ctx context.Context, usc *UserServiceContext) context.Context {
	return context.WithValue(ctx, userServicesContextKey{}, usc)
}

// UserServicesFromContext returns the User Service Context attached to ctx.
// The boolean is false when the context was never resolved, which callers
// must treat the same as having no access.
func UserServicesFromContext(ctx context.Context) (*UserServiceContext, bool) {
	usc, ok := ctx.Value(userServicesContextKey{}).(*UserServiceContext)
	if !ok || usc == nil {
		return nil, false
	}
	return usc, true
}

// UserService is one service a user (or invitation) can access within an
// organisation, as listed by the access service.
type UserService struct {
	UserID         string `json:"userId,omitempty"`
	InvitationID   string `json:"invitationId,omitempty"`
	ServiceID      string `json:"serviceId"`
	OrganisationID string `json:"organisationId"`
	Roles          []Role `json:"roles"`
}
