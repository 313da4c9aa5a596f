package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"

	"github.com/manageconsole/manage/cmd/manage/internal/config"
)

// RelyingParty signs users in against the configured identity provider by
// wrapping the zitadel/oidc RelyingParty.
type RelyingParty struct {
	rp rp.RelyingParty
}

// NewRelyingParty discovers the issuer and builds a PKCE-enabled relying
// party. The state and verifier cookies are sealed with keys generated at
// startup, so an in-flight login does not survive a restart.
func NewRelyingParty(ctx context.Context, cfg config.OIDCConfig, secureCookies bool) (*RelyingParty, error) {
	hashKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie hash key: %w", err)
	}
	cryptoKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie crypto key: %w", err)
	}

	var cookieOpts []httphelper.CookieHandlerOpt
	if !secureCookies {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(hashKey, cryptoKey, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI,
		cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty}, nil
}

// RP exposes the underlying relying party for the library's HTTP handlers.
func (r *RelyingParty) RP() rp.RelyingParty {
	return r.rp
}

// EndSessionURL returns the identity provider's logout endpoint, or "" when
// discovery did not advertise one.
func (r *RelyingParty) EndSessionURL() string {
	return r.rp.GetEndSessionEndpoint()
}

func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	_, err := io.ReadFull(rand.Reader, b)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random URL-safe string for the OIDC state.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
