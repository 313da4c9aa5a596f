package access

import (
	"errors"
	"fmt"
	"strings"
)

// RoleCodeSeparator joins the service identifier and role name in a role code.
const RoleCodeSeparator = "_"

// ErrMalformedRoleCode is returned when a role code cannot be split into a
// service identifier and a role name.
var ErrMalformedRoleCode = errors.New("malformed role code")

// RoleCode is the decoded form of a compound "<serviceId>_<roleName>" code.
type RoleCode struct {
	ServiceID string
	RoleName  string
}

// String re-encodes the role code.
func (c RoleCode) String() string {
	return c.ServiceID + RoleCodeSeparator + c.RoleName
}

// ParseRoleCode decodes a compound role code.
//
// The service identifier is everything before the first separator. The role
// name is the second separator-delimited segment, so "svc_role_extra" decodes
// to role "role". Codes without a separator, or with an empty service or role
// segment, fail with ErrMalformedRoleCode.
func ParseRoleCode(code string) (RoleCode, error) {
	idx := strings.Index(code, RoleCodeSeparator)
	if idx < 0 {
		return RoleCode{}, fmt.Errorf("%w: %q has no %q separator", ErrMalformedRoleCode, code, RoleCodeSeparator)
	}

	serviceID := code[:idx]
	if serviceID == "" {
		return RoleCode{}, fmt.Errorf("%w: %q has an empty service identifier", ErrMalformedRoleCode, code)
	}

	segments := strings.Split(code, RoleCodeSeparator)
	roleName := segments[1]
	if roleName == "" {
		return RoleCode{}, fmt.Errorf("%w: %q has an empty role name", ErrMalformedRoleCode, code)
	}

	return RoleCode{ServiceID: serviceID, RoleName: roleName}, nil
}
