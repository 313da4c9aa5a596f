package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "MANAGE"

// Session store backends.
const (
	SessionStoreDatabase = "database"
	SessionStoreRedis    = "redis"
)

// Outbound API authentication modes.
const (
	APIAuthSecret            = "secret"
	APIAuthClientCredentials = "client_credentials"
)

// Config holds the application configuration
type Config struct {
	// Server bind address (host:port)
	ServerAddr string

	// Public base URL of this application
	ServerURL string

	// Database connection string (DSN) used by the database session store
	DatabaseURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	LogLevel  string
	LogFormat string

	Session SessionConfig
	Redis   RedisConfig
	OIDC    OIDCConfig

	// Upstream services
	Access        AccessConfig
	Applications  UpstreamConfig
	Organisations UpstreamConfig
	Search        UpstreamConfig
	APIAuth       APIAuthConfig

	// Timeout applied to every upstream HTTP call
	HTTPTimeout time.Duration

	ServiceCache ServiceCacheConfig

	Sentry        SentryConfig
	Observability ObservabilityConfig
}

// SessionConfig controls the session cookie and the backing store.
type SessionConfig struct {
	Store      string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// RedisConfig is used when Session.Store is "redis".
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// OIDCConfig holds the relying-party settings used to sign users in.
// Login is disabled when Issuer is empty.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Enabled reports whether an identity provider is configured.
func (c *OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

// UpstreamConfig locates a remote service.
type UpstreamConfig struct {
	URL string
}

// AccessConfig locates the access service and carries the namespace
// identifiers under which this application's own role assignments live.
type AccessConfig struct {
	URL string

	// ServiceID and OrganisationID scope the per-request role lookup.
	ServiceID      string
	OrganisationID string

	// UserManagementRole gates the user search and role editing screens.
	UserManagementRole string
}

// APIAuthConfig selects how outbound calls authenticate.
//
// "secret" mints a short-lived HS256 bearer token signed with Secret.
// "client_credentials" obtains tokens from TokenURL with the OAuth2 client
// credentials grant.
type APIAuthConfig struct {
	Type         string
	Secret       string
	Issuer       string
	Audience     string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// ServiceCacheConfig bounds the applications-service metadata cache.
type ServiceCacheConfig struct {
	TTL  time.Duration
	Size int
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string
	Environment string
}

// ObservabilityConfig holds OpenTelemetry export settings.
// Tracing export is disabled when OTLPEndpoint is empty.
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPInsecure   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("database_url", "file:manage.db?cache=shared")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("session.store", SessionStoreDatabase)
	v.SetDefault("session.cookie_name", "manage.sid")
	v.SetDefault("session.ttl", "8h")
	v.SetDefault("session.secure", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "manage:session:")

	v.SetDefault("oidc.issuer", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.redirect_uri", "")
	v.SetDefault("oidc.scopes", []string{"openid", "profile", "email"})

	v.SetDefault("access.url", "")
	v.SetDefault("access.service_id", "")
	v.SetDefault("access.organisation_id", "")
	v.SetDefault("access.user_management_role", "accessManage")
	v.SetDefault("applications.url", "")
	v.SetDefault("organisations.url", "")
	v.SetDefault("search.url", "")

	v.SetDefault("api_auth.type", APIAuthSecret)
	v.SetDefault("api_auth.secret", "")
	v.SetDefault("api_auth.issuer", "manage")
	v.SetDefault("api_auth.audience", "")
	v.SetDefault("api_auth.token_url", "")
	v.SetDefault("api_auth.client_id", "")
	v.SetDefault("api_auth.client_secret", "")
	v.SetDefault("api_auth.scopes", []string{})

	v.SetDefault("http.timeout", "10s")
	v.SetDefault("service_cache.ttl", "1m")
	v.SetDefault("service_cache.size", 256)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.insecure", false)
	v.SetDefault("otel.service_name", "manage")
	v.SetDefault("otel.service_version", "dev")
	v.SetDefault("otel.environment", "development")
}

// Load reads configuration from the global viper instance: config file
// (if one was read), MANAGE_ prefixed environment variables, bound flags,
// then defaults.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		ServerAddr:       v.GetString("server_addr"),
		ServerURL:        v.GetString("server_url"),
		DatabaseURL:      v.GetString("database_url"),
		MaxDBConnections: v.GetInt("max_db_connections"),
		Debug:            v.GetBool("debug"),
		LogLevel:         v.GetString("log_level"),
		LogFormat:        v.GetString("log_format"),
		Session: SessionConfig{
			Store:      strings.ToLower(v.GetString("session.store")),
			CookieName: v.GetString("session.cookie_name"),
			TTL:        v.GetDuration("session.ttl"),
			Secure:     v.GetBool("session.secure"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		OIDC: OIDCConfig{
			Issuer:       v.GetString("oidc.issuer"),
			ClientID:     v.GetString("oidc.client_id"),
			ClientSecret: v.GetString("oidc.client_secret"),
			RedirectURI:  v.GetString("oidc.redirect_uri"),
			Scopes:       v.GetStringSlice("oidc.scopes"),
		},
		Access: AccessConfig{
			URL:                v.GetString("access.url"),
			ServiceID:          v.GetString("access.service_id"),
			OrganisationID:     v.GetString("access.organisation_id"),
			UserManagementRole: v.GetString("access.user_management_role"),
		},
		Applications:  UpstreamConfig{URL: v.GetString("applications.url")},
		Organisations: UpstreamConfig{URL: v.GetString("organisations.url")},
		Search:        UpstreamConfig{URL: v.GetString("search.url")},
		APIAuth: APIAuthConfig{
			Type:         strings.ToLower(v.GetString("api_auth.type")),
			Secret:       v.GetString("api_auth.secret"),
			Issuer:       v.GetString("api_auth.issuer"),
			Audience:     v.GetString("api_auth.audience"),
			TokenURL:     v.GetString("api_auth.token_url"),
			ClientID:     v.GetString("api_auth.client_id"),
			ClientSecret: v.GetString("api_auth.client_secret"),
			Scopes:       v.GetStringSlice("api_auth.scopes"),
		},
		HTTPTimeout: v.GetDuration("http.timeout"),
		ServiceCache: ServiceCacheConfig{
			TTL:  v.GetDuration("service_cache.ttl"),
			Size: v.GetInt("service_cache.size"),
		},
		Sentry: SentryConfig{
			DSN:         v.GetString("sentry.dsn"),
			Environment: v.GetString("sentry.environment"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:   v.GetString("otel.endpoint"),
			OTLPInsecure:   v.GetBool("otel.insecure"),
			ServiceName:    v.GetString("otel.service_name"),
			ServiceVersion: v.GetString("otel.service_version"),
			Environment:    v.GetString("otel.environment"),
		},
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}

	upstreams := []struct {
		key string
		url string
	}{
		{"access.url", c.Access.URL},
		{"applications.url", c.Applications.URL},
		{"organisations.url", c.Organisations.URL},
		{"search.url", c.Search.URL},
	}
	for _, u := range upstreams {
		if u.url == "" {
			return fmt.Errorf("%s is required", u.key)
		}
		parsed, err := url.Parse(u.url)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", u.key, u.url)
		}
	}

	if c.Access.ServiceID == "" {
		return fmt.Errorf("access.service_id is required")
	}
	if c.Access.OrganisationID == "" {
		return fmt.Errorf("access.organisation_id is required")
	}

	switch c.Session.Store {
	case SessionStoreDatabase:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the %s session store", SessionStoreDatabase)
		}
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the %s session store", SessionStoreRedis)
		}
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", SessionStoreDatabase, SessionStoreRedis, c.Session.Store)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	switch c.APIAuth.Type {
	case APIAuthSecret:
		if c.APIAuth.Secret == "" {
			return fmt.Errorf("api_auth.secret is required for %s auth", APIAuthSecret)
		}
	case APIAuthClientCredentials:
		if c.APIAuth.TokenURL == "" || c.APIAuth.ClientID == "" || c.APIAuth.ClientSecret == "" {
			return fmt.Errorf("api_auth.token_url, api_auth.client_id and api_auth.client_secret are required for %s auth", APIAuthClientCredentials)
		}
	default:
		return fmt.Errorf("api_auth.type must be %q or %q, got %q", APIAuthSecret, APIAuthClientCredentials, c.APIAuth.Type)
	}

	// OIDC is optional for local development; when set it must be complete.
	if c.OIDC.Enabled() {
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("oidc.client_id is required when oidc.issuer is set")
		}
		if c.OIDC.RedirectURI == "" {
			return fmt.Errorf("oidc.redirect_uri is required when oidc.issuer is set")
		}
	}

	return nil
}
