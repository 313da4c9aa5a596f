package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/manageconsole/manage/cmd/manage/internal/auth"
	"github.com/manageconsole/manage/cmd/manage/internal/logging"
	"github.com/manageconsole/manage/cmd/manage/internal/session"
)

const defaultLandingPath = "/services"

// handleLogin starts the authorization code flow. The library handles the
// PKCE challenge, the state cookie and the redirect to the provider.
func (s *server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := auth.GenerateNonce()
		if err != nil {
			s.handleError(w, r, fmt.Errorf("generate login state: %w", err))
			return
		}
		rp.AuthURLHandler(func() string { return state }, s.rp.RP())(w, r)
	}
}

// handleCallback completes the code exchange and signs the session in. The
// session id is regenerated and the user is sent to the URL recorded when
// login was demanded.
func (s *server) handleCallback() http.HandlerFunc {
	codeExchangeCallback := func(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], state string, provider rp.RelyingParty) {
		ctx := r.Context()
		start := time.Now()

		sess, ok := session.FromContext(ctx)
		if !ok {
			s.handleError(w, r, ErrNoSession)
			return
		}

		target := auth.SafeRedirect(sess.Data.RedirectURL, defaultLandingPath)
		sess.Data.User = auth.PrincipalFromClaims(tokens.IDTokenClaims)
		sess.Data.IDToken = tokens.IDToken
		sess.Data.RedirectURL = ""
		sess.Data.CreatedAt = time.Now().Unix()

		if err := sess.Regenerate(ctx, w); err != nil {
			s.recordAuth(r, false, start)
			s.handleError(w, r, fmt.Errorf("establish session: %w", err))
			return
		}
		s.recordAuth(r, true, start)

		logging.From(ctx).Info("user signed in", "user_id", sess.Data.User.Subject)
		http.Redirect(w, r, target, http.StatusFound)
	}

	return rp.CodeExchangeHandler(codeExchangeCallback, s.rp.RP())
}

// signOut destroys the session and, when the provider advertises an end
// session endpoint, ends the provider session too.
func (s *server) signOut(w http.ResponseWriter, r *http.Request) error {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return ErrNoSession
	}

	idToken := sess.Data.IDToken
	if sess.Data.User != nil {
		logging.From(r.Context()).Info("user signed out", "user_id", sess.Data.User.Subject)
	}
	if err := sess.Destroy(r.Context(), w); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	target := "/"
	if s.rp != nil {
		if endpoint := s.rp.EndSessionURL(); endpoint != "" && idToken != "" {
			q := url.Values{"id_token_hint": {idToken}}
			if s.signedOutURL != "" {
				q.Set("post_logout_redirect_uri", s.signedOutURL)
			}
			target = endpoint + "?" + q.Encode()
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}

func (s *server) recordAuth(r *http.Request, success bool, start time.Time) {
	if s.authMetrics == nil {
		return
	}
	s.authMetrics.RecordAuth(r.Context(), "oidc", success, float64(time.Since(start).Microseconds())/1000)
}
