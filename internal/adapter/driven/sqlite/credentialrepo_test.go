package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func TestCredentialRepo_SaveAndLoad(t *testing.T) {
	kv := NewKVRepo(setupTestDB(t))
	repo, err := NewCredentialRepo(kv, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.Credentials{Email: "x@x.com", Password: "secret"}))

	creds, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "x@x.com", creds.Email)
	assert.Equal(t, "secret", creds.Password)

	raw, ok, err := kv.Get(ctx, CredentialsKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"email":"x@x.com","password":"secret"}`, raw)
}

func TestCredentialRepo_LoadMissing(t *testing.T) {
	repo, err := NewCredentialRepo(NewKVRepo(setupTestDB(t)), nil)
	require.NoError(t, err)

	creds, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestCredentialRepo_SaveOverwrites(t *testing.T) {
	repo, err := NewCredentialRepo(NewKVRepo(setupTestDB(t)), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.Credentials{Email: "old@x.com", Password: "a"}))
	require.NoError(t, repo.Save(ctx, model.Credentials{Email: "new@x.com", Password: "b"}))

	creds, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "new@x.com", creds.Email)
}

func TestCredentialRepo_Clear(t *testing.T) {
	repo, err := NewCredentialRepo(NewKVRepo(setupTestDB(t)), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.Credentials{Email: "x@x.com", Password: "secret"}))
	require.NoError(t, repo.Clear(ctx))

	creds, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestCredentialRepo_SealedWithKey(t *testing.T) {
	kv := NewKVRepo(setupTestDB(t))
	repo, err := NewCredentialRepo(kv, testKey())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.Credentials{Email: "x@x.com", Password: "secret"}))

	raw, ok, err := kv.Get(ctx, CredentialsKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(raw, sealedPrefix))
	assert.NotContains(t, raw, "secret")

	creds, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "secret", creds.Password)
}

func TestCredentialRepo_SealedWithoutKeyFails(t *testing.T) {
	kv := NewKVRepo(setupTestDB(t))
	ctx := context.Background()

	sealed, err := NewCredentialRepo(kv, testKey())
	require.NoError(t, err)
	require.NoError(t, sealed.Save(ctx, model.Credentials{Email: "x@x.com", Password: "secret"}))

	plain, err := NewCredentialRepo(kv, nil)
	require.NoError(t, err)

	creds, err := plain.Load(ctx)
	assert.Nil(t, creds)
	require.Error(t, err)
}

func TestNewCredentialRepo_RejectsShortKey(t *testing.T) {
	repo, err := NewCredentialRepo(NewKVRepo(setupTestDB(t)), []byte("short"))
	assert.Nil(t, repo)
	assert.ErrorIs(t, err, driven.ErrInvalidSecretKey)
}
