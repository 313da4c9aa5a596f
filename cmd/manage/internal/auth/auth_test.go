package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zitadel/oidc/v3/pkg/oidc"
)

func TestFeaturePolicy(t *testing.T) {
	p, err := NewFeaturePolicy("accessManage")
	require.NoError(t, err)

	tests := []struct {
		name  string
		roles []string
		want  []string
	}{
		{"service config", []string{"serviceconfig"}, []string{FeatureServiceConfiguration, FeatureServiceBanners}},
		{"banners only", []string{"serviceBanner"}, []string{FeatureServiceBanners}},
		{"user management", []string{"accessManage"}, []string{FeatureUsers}},
		{"combined", []string{"serviceBanner", "accessManage"}, []string{FeatureServiceBanners, FeatureUsers}},
		{"unknown role", []string{"viewer"}, []string{}},
		{"no roles", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Features(tt.roles))
		})
	}
}

func TestFeaturePolicy_ConfiguredUserManagementRole(t *testing.T) {
	p, err := NewFeaturePolicy("supportManage")
	require.NoError(t, err)

	assert.True(t, p.Allowed([]string{"supportManage"}, FeatureUsers))
	assert.False(t, p.Allowed([]string{"accessManage"}, FeatureUsers))
	assert.False(t, p.Allowed([]string{"supportManage"}, FeatureServiceConfiguration))
}

func TestPrincipalFromClaims(t *testing.T) {
	claims := &oidc.IDTokenClaims{}
	claims.Subject = "user-1"
	claims.GivenName = "Jane"
	claims.FamilyName = "Doe"
	claims.Email = "jane@example.test"

	p := PrincipalFromClaims(claims)
	require.NotNil(t, p)
	assert.Equal(t, "user-1", p.Subject)
	assert.Equal(t, "Jane Doe", p.DisplayName())
	assert.Equal(t, "jane@example.test", p.Email)

	assert.Nil(t, PrincipalFromClaims(nil))
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/services/svc1/users?page=2", "/services/svc1/users?page=2"},
		{"", "/services"},
		{"https://evil.test/", "/services"},
		{"//evil.test/", "/services"},
		{"/\\evil.test", "/services"},
		{"services", "/services"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeRedirect(tt.target, "/services"), tt.target)
	}
}

func TestGenerateNonce(t *testing.T) {
	a, err := GenerateNonce()
	require.NoError(t, err)
	b, err := GenerateNonce()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
