package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
	"github.com/ericfisherdev/firechat/internal/metrics"
)

// SessionGateway is the part of the auth gateway the bootstrapper needs.
// AuthService satisfies it.
type SessionGateway interface {
	ObserveSession(fn func(*model.Session)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
}

// Compile-time interface satisfaction check.
var _ SessionGateway = (*AuthService)(nil)

// RouteFunc receives every resolved bootstrap state. identity is nil for
// BootstrapUnauthenticated.
type RouteFunc func(state model.BootstrapState, identity *model.Identity)

// Bootstrapper resolves which identity the client starts with. It observes
// the auth gateway; a session event without a live session triggers a
// silent re-login from stored credentials, degrading to an offline identity
// when that fails. The initializing flag clears exactly once, after the first
// resolution, whichever branch was taken.
type Bootstrapper struct {
	gateway SessionGateway
	creds   driven.CredentialStore
	metrics metrics.Recorder

	wake chan struct{}

	mu         sync.Mutex
	pending    *model.Session
	hasPending bool
	state      model.BootstrapState
	identity   *model.Identity
	watchers   map[int]RouteFunc
	nextID     int

	ready     chan struct{}
	readyOnce sync.Once
}

// NewBootstrapper creates a new Bootstrapper in the initializing state.
func NewBootstrapper(gateway SessionGateway, creds driven.CredentialStore, rec metrics.Recorder) *Bootstrapper {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Bootstrapper{
		gateway:  gateway,
		creds:    creds,
		metrics:  rec,
		wake:     make(chan struct{}, 1),
		state:    model.BootstrapInitializing,
		watchers: make(map[int]RouteFunc),
		ready:    make(chan struct{}),
	}
}

// Run observes the session gateway and resolves every session event in
// order. Run blocks until the context is canceled.
func (b *Bootstrapper) Run(ctx context.Context) error {
	unsubscribe := b.gateway.ObserveSession(b.onSession)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			slog.Info("bootstrapper stopped")
			return nil
		case <-b.wake:
			b.mu.Lock()
			session, ok := b.pending, b.hasPending
			b.pending, b.hasPending = nil, false
			b.mu.Unlock()

			if ok {
				b.resolve(ctx, session)
			}
		}
	}
}

// onSession records the latest session event and wakes Run. Events that
// arrive while one is being resolved coalesce; only the latest is kept.
func (b *Bootstrapper) onSession(session *model.Session) {
	b.mu.Lock()
	b.pending, b.hasPending = session, true
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bootstrapper) resolve(ctx context.Context, session *model.Session) {
	if session != nil {
		identity := model.IdentityFromSession(*session)
		b.settle(model.BootstrapAuthenticated, &identity)
		return
	}
	b.checkLocalLogin(ctx)
}

// checkLocalLogin attempts a silent re-login with the stored credentials.
func (b *Bootstrapper) checkLocalLogin(ctx context.Context) {
	creds, err := b.creds.Load(ctx)
	if err != nil {
		slog.Error("read stored credentials failed", "error", err)
		b.settle(model.BootstrapUnauthenticated, nil)
		return
	}
	if creds == nil {
		b.settle(model.BootstrapUnauthenticated, nil)
		return
	}

	session, err := b.gateway.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		slog.Info("online login failed, entering offline mode", "email", creds.Email, "error", err)
		identity := model.OfflineIdentity(creds.Email)
		b.settle(model.BootstrapOffline, &identity)
		return
	}

	identity := model.IdentityFromSession(*session)
	b.settle(model.BootstrapAuthenticated, &identity)
}

func (b *Bootstrapper) settle(state model.BootstrapState, identity *model.Identity) {
	b.mu.Lock()
	changed := b.state != state || !sameIdentity(b.identity, identity)
	b.state = state
	b.identity = identity
	watchers := make([]RouteFunc, 0, len(b.watchers))
	for _, fn := range b.watchers {
		watchers = append(watchers, fn)
	}
	b.mu.Unlock()

	b.readyOnce.Do(func() {
		b.metrics.RecordBootstrap(string(state))
		slog.Info("bootstrap complete", "state", string(state))
		close(b.ready)
	})

	if !changed {
		return
	}
	for _, fn := range watchers {
		fn(state, copyIdentity(identity))
	}
}

// Initializing reports whether the first resolution is still pending.
func (b *Bootstrapper) Initializing() bool {
	select {
	case <-b.ready:
		return false
	default:
		return true
	}
}

// Wait blocks until the initializing flag clears or ctx is done.
func (b *Bootstrapper) Wait(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current state and identity.
func (b *Bootstrapper) State() (model.BootstrapState, *model.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, copyIdentity(b.identity)
}

// Watch registers fn to receive every state change. If bootstrap has
// already resolved, fn is called once with the current state before Watch
// returns. The returned func unregisters fn.
func (b *Bootstrapper) Watch(fn RouteFunc) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = fn
	b.mu.Unlock()

	if !b.Initializing() {
		fn(b.State())
	}

	return func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}
}

func sameIdentity(a, b *model.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyIdentity(i *model.Identity) *model.Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
