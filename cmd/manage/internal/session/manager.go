package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Options configures the session cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager loads and persists browser sessions through a Store.
type Manager struct {
	store Store
	opts  Options
}

// NewManager creates a session manager.
func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "manage.sid"
	}
	if opts.TTL <= 0 {
		opts.TTL = 8 * time.Hour
	}
	return &Manager{store: store, opts: opts}
}

// Session is the request's view of one stored session.
// Changes are persisted only by Save.
type Session struct {
	m     *Manager
	id    string
	isNew bool
	Data  *Data
}

// Load returns the session named by the request cookie, or a fresh unsaved
// session when there is no cookie or the stored session has expired.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	ctx := r.Context()

	if c, err := r.Cookie(m.opts.CookieName); err == nil && c.Value != "" {
		data, err := m.store.Get(ctx, c.Value)
		switch {
		case err == nil:
			if err := m.store.Touch(ctx, c.Value, m.opts.TTL); err != nil {
				return nil, err
			}
			return &Session{m: m, id: c.Value, Data: data}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	return m.newSession()
}

func (m *Manager) newSession() (*Session, error) {
	token, err := NewCSRFToken()
	if err != nil {
		return nil, err
	}
	return &Session{m: m, isNew: true, Data: &Data{CSRFToken: token}}, nil
}

// ID returns the session identifier, empty until first saved.
func (s *Session) ID() string {
	return s.id
}

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Save persists the session, issuing the cookie the first time.
func (s *Session) Save(ctx context.Context, w http.ResponseWriter) error {
	if !s.isNew {
		if err := s.m.store.Update(ctx, s.id, s.Data, s.m.opts.TTL); err != nil {
			return err
		}
		return nil
	}

	id, err := s.m.store.Create(ctx, s.Data, s.m.opts.TTL)
	if err != nil {
		return err
	}
	s.id = id
	s.isNew = false
	s.m.setCookie(w, id, s.m.opts.TTL)
	return nil
}

// Regenerate moves the session data to a new identifier and drops the old
// record. Call after sign-in.
func (s *Session) Regenerate(ctx context.Context, w http.ResponseWriter) error {
	if !s.isNew {
		if err := s.m.store.Delete(ctx, s.id); err != nil {
			return fmt.Errorf("drop previous session: %w", err)
		}
	}
	token, err := NewCSRFToken()
	if err != nil {
		return err
	}
	s.Data.CSRFToken = token
	s.id = ""
	s.isNew = true
	return s.Save(ctx, w)
}

// Destroy deletes the stored session and expires the cookie.
func (s *Session) Destroy(ctx context.Context, w http.ResponseWriter) error {
	if !s.isNew {
		if err := s.m.store.Delete(ctx, s.id); err != nil {
			return err
		}
	}
	s.m.setCookie(w, "", -1)
	s.Data = &Data{}
	s.isNew = true
	s.id = ""
	return nil
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(kind, message string) {
	s.Data.Flashes = append(s.Data.Flashes, Flash{Kind: kind, Message: message})
}

// PopFlashes returns and clears the queued messages.
func (s *Session) PopFlashes() []Flash {
	flashes := s.Data.Flashes
	s.Data.Flashes = nil
	return flashes
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
