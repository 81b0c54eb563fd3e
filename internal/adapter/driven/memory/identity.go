package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityProvider = (*IdentityProvider)(nil)

type account struct {
	uid      string
	email    string
	password string
}

// IdentityProvider keeps accounts and refresh tokens in memory.
type IdentityProvider struct {
	mu       sync.Mutex
	accounts map[string]account
	refresh  map[string]string // refresh token -> email
	offline  bool
}

// NewIdentityProvider creates an IdentityProvider with no accounts.
func NewIdentityProvider() *IdentityProvider {
	return &IdentityProvider{
		accounts: make(map[string]account),
		refresh:  make(map[string]string),
	}
}

// SetOffline makes every call fail with ErrUnavailable.
func (p *IdentityProvider) SetOffline(offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = offline
}

// SignIn checks the password of an existing account.
func (p *IdentityProvider) SignIn(_ context.Context, email, password string) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offline {
		return nil, ErrUnavailable
	}
	acct, ok := p.accounts[email]
	if !ok || acct.password != password {
		return nil, driven.ErrInvalidLogin
	}
	return p.issueLocked(acct), nil
}

// SignUp creates an account. Registering an existing email fails.
func (p *IdentityProvider) SignUp(_ context.Context, email, password string) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offline {
		return nil, ErrUnavailable
	}
	if _, ok := p.accounts[email]; ok {
		return nil, fmt.Errorf("email %s already registered", email)
	}
	acct := account{uid: uuid.NewString(), email: email, password: password}
	p.accounts[email] = acct
	return p.issueLocked(acct), nil
}

// Refresh rotates a refresh token.
func (p *IdentityProvider) Refresh(_ context.Context, refreshToken string) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offline {
		return nil, ErrUnavailable
	}
	email, ok := p.refresh[refreshToken]
	if !ok {
		return nil, fmt.Errorf("unknown refresh token")
	}
	delete(p.refresh, refreshToken)
	return p.issueLocked(p.accounts[email]), nil
}

func (p *IdentityProvider) issueLocked(acct account) *model.Session {
	rt := uuid.NewString()
	p.refresh[rt] = acct.email
	return &model.Session{
		UID:          acct.uid,
		Email:        acct.email,
		IDToken:      uuid.NewString(),
		RefreshToken: rt,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}
