// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// tokenRefreshMargin is how long before expiry an ID token is refreshed.
const tokenRefreshMargin = 5 * time.Minute

// AuthService wraps the identity provider with session persistence and
// session observation. Observers are first notified once Start has restored
// any persisted session, then on every sign-in and sign-out.
type AuthService struct {
	provider driven.IdentityProvider
	sessions driven.SessionStore
	creds    driven.CredentialStore

	mu        sync.Mutex
	current   *model.Session
	ready     bool
	observers map[int]func(*model.Session)
	nextID    int

	refreshMu sync.Mutex
}

// NewAuthService creates a new AuthService with all required dependencies.
func NewAuthService(provider driven.IdentityProvider, sessions driven.SessionStore, creds driven.CredentialStore) *AuthService {
	return &AuthService{
		provider:  provider,
		sessions:  sessions,
		creds:     creds,
		observers: make(map[int]func(*model.Session)),
	}
}

// Start restores the persisted session, if any, by refreshing its token.
// A failed restore leaves the service signed out; it is never fatal.
func (s *AuthService) Start(ctx context.Context) {
	session := s.restore(ctx)

	s.mu.Lock()
	s.current = session
	s.ready = true
	s.mu.Unlock()

	s.notify(session)
}

func (s *AuthService) restore(ctx context.Context) *model.Session {
	stored, err := s.sessions.Load(ctx)
	if err != nil {
		slog.Error("load persisted session failed", "error", err)
		return nil
	}
	if stored == nil || stored.RefreshToken == "" {
		return nil
	}

	session, err := s.provider.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		slog.Warn("session restore failed", "email", stored.Email, "error", err)
		return nil
	}

	s.persist(ctx, *session)
	slog.Info("session restored", "email", session.Email)
	return session
}

// ObserveSession registers fn to be called with the current session (nil
// when signed out) and again on every change. If Start has already finished,
// fn is called once before ObserveSession returns. The returned func
// unregisters fn.
func (s *AuthService) ObserveSession(fn func(*model.Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	ready := s.ready
	current := cloneSession(s.current)
	s.mu.Unlock()

	if ready {
		fn(current)
	}

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Current returns a copy of the live session, or nil.
func (s *AuthService) Current() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.current)
}

// IDToken returns the live session's ID token, refreshing it through the
// identity provider when it is within tokenRefreshMargin of expiry. A zero
// expiry is treated as never expiring. Signed out, it returns
// model.ErrNoSession. A failed refresh keeps the session.
func (s *AuthService) IDToken(ctx context.Context) (string, time.Time, error) {
	if session, ok := s.freshSession(); ok {
		return session.IDToken, session.ExpiresAt, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	stale, ok := s.freshSession()
	if ok {
		return stale.IDToken, stale.ExpiresAt, nil
	}
	if stale == nil {
		return "", time.Time{}, model.ErrNoSession
	}

	session, err := s.provider.Refresh(ctx, stale.RefreshToken)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("refresh id token: %w", err)
	}

	s.mu.Lock()
	if s.current == nil || s.current.RefreshToken != stale.RefreshToken {
		// Signed out or replaced during the refresh.
		s.mu.Unlock()
		return "", time.Time{}, model.ErrNoSession
	}
	s.current = cloneSession(session)
	s.mu.Unlock()

	s.persist(ctx, *session)
	slog.Debug("id token refreshed", "email", session.Email, "expires_at", session.ExpiresAt)
	return session.IDToken, session.ExpiresAt, nil
}

// freshSession returns a copy of the current session and whether its ID
// token can be used as is.
func (s *AuthService) freshSession() (*model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := cloneSession(s.current)
	if session == nil || session.IDToken == "" {
		return session, false
	}
	if session.ExpiresAt.IsZero() || time.Now().Add(tokenRefreshMargin).Before(session.ExpiresAt) {
		return session, true
	}
	return session, false
}

// SignIn authenticates with the identity provider and makes the result the
// current session. Stored credentials are not touched.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	s.setCurrent(ctx, session)
	return cloneSession(session), nil
}

// Login is the login form path: it signs in and then saves the credentials
// for offline re-authentication.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if blankCredentials(email, password) {
		return nil, model.ErrMissingCredentials
	}

	session, err := s.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.saveCredentials(ctx, email, password)
	return session, nil
}

// Register is the registration form path: it creates the account, makes it
// the current session and saves the credentials.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.Session, error) {
	if blankCredentials(email, password) {
		return nil, model.ErrMissingCredentials
	}

	session, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	s.setCurrent(ctx, session)
	s.saveCredentials(ctx, email, password)
	return cloneSession(session), nil
}

// SignOut clears the stored credentials first, then drops the session.
// Observers are always notified, even when clearing local state fails.
func (s *AuthService) SignOut(ctx context.Context) error {
	if err := s.creds.Clear(ctx); err != nil {
		slog.Error("clear credentials failed", "error", err)
	}

	var clearErr error
	if err := s.sessions.Clear(ctx); err != nil {
		clearErr = fmt.Errorf("clear persisted session: %w", err)
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	slog.Info("signed out")
	s.notify(nil)
	return clearErr
}

func (s *AuthService) setCurrent(ctx context.Context, session *model.Session) {
	s.persist(ctx, *session)

	s.mu.Lock()
	s.current = cloneSession(session)
	s.mu.Unlock()

	slog.Info("signed in", "email", session.Email)
	s.notify(session)
}

func (s *AuthService) persist(ctx context.Context, session model.Session) {
	if err := s.sessions.Save(ctx, session); err != nil {
		slog.Error("persist session failed", "email", session.Email, "error", err)
	}
}

func (s *AuthService) saveCredentials(ctx context.Context, email, password string) {
	if err := s.creds.Save(ctx, model.Credentials{Email: email, Password: password}); err != nil {
		slog.Error("save credentials failed", "error", err)
	}
}

// notify calls every observer outside the lock so observers may call back
// into the service.
func (s *AuthService) notify(session *model.Session) {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return
	}
	observers := make([]func(*model.Session), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(cloneSession(session))
	}
}

func cloneSession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// blankCredentials reports a missing field. Whitespace is left for the
// identity provider to reject.
func blankCredentials(email, password string) bool {
	return email == "" || password == ""
}
