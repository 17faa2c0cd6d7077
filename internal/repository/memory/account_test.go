package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/srplogin/internal/model"
)

func TestAccountRepository_CreateLookup(t *testing.T) {
	ctx := context.Background()
	r := NewAccountRepository()

	_, err := r.Lookup(ctx, "alice")
	assert.ErrorIs(t, err, model.ErrNotFound)

	salt := []byte{1, 2}
	require.NoError(t, r.Create(ctx, model.Account{Name: "alice", Salt: salt, Verifier: []byte{3}}))
	assert.ErrorIs(t, r.Create(ctx, model.Account{Name: "alice"}), model.ErrAccountExists)

	salt[0] = 9
	got, err := r.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got.Salt)
	assert.False(t, got.CreatedAt.IsZero())

	got.Verifier[0] = 7
	again, err := r.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, again.Verifier)
}

func TestAccountRepository_Online(t *testing.T) {
	ctx := context.Background()
	r := NewAccountRepository()
	login := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return login }

	conn := model.NewConnectionHandle()
	assert.ErrorIs(t, r.MarkOnline(ctx, "alice", conn), model.ErrNotFound)

	require.NoError(t, r.Create(ctx, model.Account{Name: "alice"}))
	require.NoError(t, r.MarkOnline(ctx, "alice", conn))
	assert.ErrorIs(t, r.MarkOnline(ctx, "alice", model.NewConnectionHandle()), model.ErrAlreadyOnline)

	online, err := r.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	got, err := r.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, login, got.LastLogin)

	require.NoError(t, r.MarkOffline(ctx, "alice"))
	require.NoError(t, r.MarkOffline(ctx, "alice"))
	online, err = r.IsOnline(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestAccountRepository_SetBanned(t *testing.T) {
	ctx := context.Background()
	r := NewAccountRepository()

	assert.ErrorIs(t, r.SetBanned(ctx, "alice", true), model.ErrNotFound)

	require.NoError(t, r.Create(ctx, model.Account{Name: "alice"}))
	require.NoError(t, r.SetBanned(ctx, "alice", true))

	got, err := r.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.Banned)
}
