package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/manageconsole/manage/cmd/manage/internal/config"
)

// secretTokenLifetime is how long a minted shared-secret token is valid.
const secretTokenLifetime = 5 * time.Minute

// NewTokenSource returns the bearer token source for outbound calls.
func NewTokenSource(ctx context.Context, cfg config.APIAuthConfig) (oauth2.TokenSource, error) {
	switch cfg.Type {
	case config.APIAuthSecret:
		return oauth2.ReuseTokenSource(nil, &secretTokenSource{
			secret:   []byte(cfg.Secret),
			issuer:   cfg.Issuer,
			audience: cfg.Audience,
			now:      time.Now,
		}), nil
	case config.APIAuthClientCredentials:
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		if cfg.Audience != "" {
			cc.EndpointParams = map[string][]string{"audience": {cfg.Audience}}
		}
		return cc.TokenSource(ctx), nil
	default:
		return nil, fmt.Errorf("unsupported api auth type %q", cfg.Type)
	}
}

// NewHTTPClient returns an http.Client that authenticates with ts and gives
// up after timeout.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource, timeout time.Duration) *http.Client {
	c := oauth2.NewClient(ctx, ts)
	c.Timeout = timeout
	return c
}

// secretTokenSource mints short-lived HS256 tokens signed with a shared secret.
type secretTokenSource struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

func (s *secretTokenSource) Token() (*oauth2.Token, error) {
	now := s.now()
	expiry := now.Add(secretTokenLifetime)

	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign api token: %w", err)
	}

	return &oauth2.Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
