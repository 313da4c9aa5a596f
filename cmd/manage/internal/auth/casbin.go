package auth

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/samber/lo"
)

// Dashboard features.
const (
	FeatureServiceConfiguration = "service-configuration"
	FeatureServiceBanners       = "service-banners"
	FeatureUsers                = "users"
)

// userAdminGroup is the policy group granted the users feature.
const userAdminGroup = "user-admin"

var allFeatures = []string{FeatureServiceConfiguration, FeatureServiceBanners, FeatureUsers}

//go:embed model.conf
var casbinModelContent string

//go:embed policy.csv
var casbinPolicyContent string

// FeaturePolicy decides which dashboard features a set of role names unlocks.
type FeaturePolicy struct {
	enforcer *casbin.SyncedEnforcer
}

// NewFeaturePolicy loads the embedded model and policy and grants the users
// feature to userManagementRole.
func NewFeaturePolicy(userManagementRole string) (*FeaturePolicy, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if err := loadPolicy(enforcer, casbinPolicyContent); err != nil {
		return nil, err
	}
	if userManagementRole != "" {
		if _, err := enforcer.AddGroupingPolicy(userManagementRole, userAdminGroup); err != nil {
			return nil, fmt.Errorf("grant %s: %w", userManagementRole, err)
		}
	}

	return &FeaturePolicy{enforcer: enforcer}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, content string) error {
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := lo.Map(strings.Split(line, ","), func(f string, _ int) string { return strings.TrimSpace(f) })
		if len(fields) != 3 {
			return fmt.Errorf("policy line %d: want 3 fields, got %d", i+1, len(fields))
		}

		var err error
		switch fields[0] {
		case "p":
			_, err = e.AddPolicy(fields[1], fields[2])
		case "g":
			_, err = e.AddGroupingPolicy(fields[1], fields[2])
		default:
			err = fmt.Errorf("unknown policy type %q", fields[0])
		}
		if err != nil {
			return fmt.Errorf("policy line %d: %w", i+1, err)
		}
	}
	return nil
}

// Allowed reports whether any of roleNames unlocks feature.
func (p *FeaturePolicy) Allowed(roleNames []string, feature string) bool {
	for _, role := range roleNames {
		ok, err := p.enforcer.Enforce(role, feature)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Features lists the features roleNames unlock, in dashboard order.
func (p *FeaturePolicy) Features(roleNames []string) []string {
	return lo.Filter(allFeatures, func(f string, _ int) bool {
		return p.Allowed(roleNames, f)
	})
}
