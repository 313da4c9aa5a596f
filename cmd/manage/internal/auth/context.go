package auth

import (
	"net/url"

	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/manageconsole/manage/cmd/manage/internal/session"
)

// PrincipalFromClaims maps verified ID token claims to the session principal.
func PrincipalFromClaims(claims *oidc.IDTokenClaims) *session.Principal {
	if claims == nil {
		return nil
	}
	return &session.Principal{
		Subject:    claims.Subject,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Email:      claims.Email,
	}
}

// SafeRedirect returns target when it is a local absolute path, otherwise
// fallback. It stops a stored redirect from leaving the site.
func SafeRedirect(target, fallback string) string {
	if target == "" {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" || len(target) < 1 || target[0] != '/' {
		return fallback
	}
	if len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return fallback
	}
	return target
}
