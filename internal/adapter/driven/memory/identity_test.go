package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

func TestIdentityProvider_SignUpThenSignIn(t *testing.T) {
	p := NewIdentityProvider()
	ctx := context.Background()

	created, err := p.SignUp(ctx, "x@x.com", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)

	session, err := p.SignIn(ctx, "x@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, created.UID, session.UID)
	assert.Equal(t, "x@x.com", session.Email)
	assert.NotEqual(t, created.RefreshToken, session.RefreshToken)
}

func TestIdentityProvider_SignInRejectsBadPassword(t *testing.T) {
	p := NewIdentityProvider()
	ctx := context.Background()
	_, err := p.SignUp(ctx, "x@x.com", "pw")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "x@x.com", "wrong")
	assert.ErrorIs(t, err, driven.ErrInvalidLogin)

	_, err = p.SignIn(ctx, "nobody@x.com", "pw")
	assert.ErrorIs(t, err, driven.ErrInvalidLogin)
}

func TestIdentityProvider_SignUpDuplicate(t *testing.T) {
	p := NewIdentityProvider()
	ctx := context.Background()
	_, err := p.SignUp(ctx, "x@x.com", "pw")
	require.NoError(t, err)

	_, err = p.SignUp(ctx, "x@x.com", "other")
	assert.Error(t, err)
}

func TestIdentityProvider_RefreshRotatesToken(t *testing.T) {
	p := NewIdentityProvider()
	ctx := context.Background()
	created, err := p.SignUp(ctx, "x@x.com", "pw")
	require.NoError(t, err)

	refreshed, err := p.Refresh(ctx, created.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "x@x.com", refreshed.Email)

	_, err = p.Refresh(ctx, created.RefreshToken)
	assert.Error(t, err, "old refresh token is single use")
}

func TestIdentityProvider_Offline(t *testing.T) {
	p := NewIdentityProvider()
	ctx := context.Background()
	_, err := p.SignUp(ctx, "x@x.com", "pw")
	require.NoError(t, err)

	p.SetOffline(true)
	_, err = p.SignIn(ctx, "x@x.com", "pw")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, driven.ErrInvalidLogin)
}
