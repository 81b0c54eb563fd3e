package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/firechat/internal/application"
	"github.com/ericfisherdev/firechat/internal/domain/model"
)

type routerFixture struct {
	router      *application.SessionRouter
	collections []*fakeCollection
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{}
	f.router = application.NewSessionRouter(context.Background(), func(identity model.Identity) *application.FeedService {
		c := &fakeCollection{}
		f.collections = append(f.collections, c)
		return application.NewFeedService(c, &fakeCache{}, identity, nil)
	})
	t.Cleanup(f.router.Close)
	return f
}

func TestSessionRouter_StartsInitializing(t *testing.T) {
	f := newRouterFixture(t)

	state, identity := f.router.State()
	assert.Equal(t, model.BootstrapInitializing, state)
	assert.Nil(t, identity)
	assert.Nil(t, f.router.Current())
}

func TestSessionRouter_IdentityMountsFeed(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Route(model.BootstrapAuthenticated, &model.Identity{UID: "u1", Email: "x@x.com"})

	feed := f.router.Current()
	require.NotNil(t, feed)
	assert.Equal(t, "x@x.com", feed.Identity().DisplayName())
	require.Len(t, f.collections, 1)
	assert.Equal(t, 1, f.collections[0].subscribed)
}

func TestSessionRouter_UnauthenticatedUnmountsFeed(t *testing.T) {
	f := newRouterFixture(t)
	f.router.Route(model.BootstrapAuthenticated, &model.Identity{UID: "u1", Email: "x@x.com"})

	f.router.Route(model.BootstrapUnauthenticated, nil)

	assert.Nil(t, f.router.Current())
	assert.Equal(t, 1, f.collections[0].unsubscribed)
	state, _ := f.router.State()
	assert.Equal(t, model.BootstrapUnauthenticated, state)
}

func TestSessionRouter_SameSenderKeepsFeed(t *testing.T) {
	f := newRouterFixture(t)
	offline := model.OfflineIdentity("x@x.com")
	f.router.Route(model.BootstrapOffline, &offline)
	first := f.router.Current()

	f.router.Route(model.BootstrapAuthenticated, &model.Identity{UID: "u1", Email: "x@x.com"})

	assert.Same(t, first, f.router.Current())
	assert.Len(t, f.collections, 1)
	state, identity := f.router.State()
	assert.Equal(t, model.BootstrapAuthenticated, state)
	require.NotNil(t, identity)
	assert.False(t, identity.Offline)
}

func TestSessionRouter_DifferentSenderSwapsFeed(t *testing.T) {
	f := newRouterFixture(t)
	f.router.Route(model.BootstrapAuthenticated, &model.Identity{UID: "u1", Email: "a@x.com"})
	first := f.router.Current()

	f.router.Route(model.BootstrapAuthenticated, &model.Identity{UID: "u2", Email: "b@x.com"})

	second := f.router.Current()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, "b@x.com", second.Identity().DisplayName())
	require.Len(t, f.collections, 2)
	assert.Equal(t, 1, f.collections[0].unsubscribed)
	assert.Equal(t, 1, f.collections[1].subscribed)
}

func TestSessionRouter_CloseUnmounts(t *testing.T) {
	f := newRouterFixture(t)
	f.router.Route(model.BootstrapAuthenticated, &model.Identity{UID: "u1", Email: "x@x.com"})

	f.router.Close()

	assert.Nil(t, f.router.Current())
	assert.Equal(t, 1, f.collections[0].unsubscribed)
}
