package application

import (
	"context"
	"sync"

	"github.com/ericfisherdev/firechat/internal/domain/model"
)

// FeedFactory builds an unmounted feed for an identity.
type FeedFactory func(identity model.Identity) *FeedService

// SessionRouter decides between the login view and the chat view. It holds
// a mutex-protected reference to the mounted feed and swaps it as bootstrap
// states arrive: an identity mounts a feed, no identity unmounts it.
type SessionRouter struct {
	ctx     context.Context
	newFeed FeedFactory

	mu       sync.RWMutex
	state    model.BootstrapState
	identity *model.Identity
	feed     *FeedService
}

// NewSessionRouter creates a router that mounts feeds under ctx.
func NewSessionRouter(ctx context.Context, newFeed FeedFactory) *SessionRouter {
	return &SessionRouter{
		ctx:     ctx,
		newFeed: newFeed,
		state:   model.BootstrapInitializing,
	}
}

// Route applies a bootstrap state. It has the RouteFunc signature so it can
// be passed to Bootstrapper.Watch directly. A feed is kept across identity
// changes that keep the same sender name.
func (r *SessionRouter) Route(state model.BootstrapState, identity *model.Identity) {
	if !state.HasIdentity() || identity == nil {
		r.mu.Lock()
		current := r.feed
		r.feed = nil
		r.state = state
		r.identity = nil
		r.mu.Unlock()

		if current != nil {
			current.Unmount()
		}
		return
	}

	r.mu.Lock()
	current := r.feed
	r.state = state
	r.identity = copyIdentity(identity)
	if current != nil && current.Identity().DisplayName() == identity.DisplayName() {
		r.mu.Unlock()
		return
	}
	next := r.newFeed(*identity)
	r.feed = next
	r.mu.Unlock()

	if current != nil {
		current.Unmount()
	}
	next.Mount(r.ctx)
}

// Current returns the mounted feed, or nil when routed to login.
func (r *SessionRouter) Current() *FeedService {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feed
}

// State returns the last routed state and identity.
func (r *SessionRouter) State() (model.BootstrapState, *model.Identity) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, copyIdentity(r.identity)
}

// Close unmounts the current feed.
func (r *SessionRouter) Close() {
	r.mu.Lock()
	current := r.feed
	r.feed = nil
	r.mu.Unlock()

	if current != nil {
		current.Unmount()
	}
}
