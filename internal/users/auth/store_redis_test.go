// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

const sessionTTL = 14 * 24 * time.Hour

func newRedisStore(t *testing.T) (*auth.RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return auth.NewRedisSessionStore(client, sessionTTL), server
}

func session(id, digest string) auth.RefreshSession {
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return auth.RefreshSession{
		Principal:   auth.PrincipalRef{Kind: auth.KindUser, ID: id},
		TokenDigest: digest,
		ExpiresAt:   createdAt.Add(sessionTTL),
		CreatedAt:   createdAt,
	}
}

/*
TestRedisSessionStore_SaveAndFind verifies lookup by digest and supersession.
*/
func TestRedisSessionStore_SaveAndFind(t *testing.T) {
	store, server := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session("u1", "digest-a")))

	found, err := store.FindByValue(ctx, "digest-a")
	require.NoError(t, err)
	want := session("u1", "digest-a")
	assert.Equal(t, want.Principal, found.Principal)
	assert.Equal(t, want.TokenDigest, found.TokenDigest)
	assert.True(t, want.ExpiresAt.Equal(found.ExpiresAt))

	assert.Equal(t, sessionTTL, server.TTL(constants.RedisPrefixSessionToken+"digest-a"))
	assert.Equal(t, sessionTTL, server.TTL(constants.RedisPrefixSessionPrincipal+"user:u1"))

	// A second login replaces the first token
	require.NoError(t, store.Save(ctx, session("u1", "digest-b")))

	_, err = store.FindByValue(ctx, "digest-a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = store.FindByValue(ctx, "digest-b")
	assert.NoError(t, err)
}

/*
TestRedisSessionStore_Rotate verifies the compare-and-swap semantics.
*/
func TestRedisSessionStore_Rotate(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session("u1", "digest-a")))
	require.NoError(t, store.Rotate(ctx, "digest-a", session("u1", "digest-b")))

	err := store.Rotate(ctx, "digest-a", session("u1", "digest-c"))
	assert.ErrorIs(t, err, apperr.ErrInvalidSession)

	_, err = store.FindByValue(ctx, "digest-a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// Rotating a principal without a session fails the same way
	err = store.Rotate(ctx, "digest-x", session("u2", "digest-y"))
	assert.ErrorIs(t, err, apperr.ErrInvalidSession)
}

/*
TestRedisSessionStore_InvalidateAndExpiry covers logout and key expiry.
*/
func TestRedisSessionStore_InvalidateAndExpiry(t *testing.T) {
	store, server := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session("u1", "digest-a")))
	require.NoError(t, store.Invalidate(ctx, auth.PrincipalRef{Kind: auth.KindUser, ID: "u1"}))
	require.NoError(t, store.Invalidate(ctx, auth.PrincipalRef{Kind: auth.KindUser, ID: "u1"}))

	_, err := store.FindByValue(ctx, "digest-a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, store.Save(ctx, session("u2", "digest-b")))
	server.FastForward(sessionTTL + time.Second)

	_, err = store.FindByValue(ctx, "digest-b")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

/*
TestRedisSessionStore_WithService runs a full login and renewal on Redis.
*/
func TestRedisSessionStore_WithService(t *testing.T) {
	f := newFixture(t)
	store, _ := newRedisStore(t)

	service := auth.NewService(f.store.Users(), f.store.Admins(), store, f.tokens, nil)
	f.service = service
	f.signUpAlice(t)

	ctx := context.Background()
	login, err := service.Login(ctx, "alice", alicePassword)
	require.NoError(t, err)

	_, err = service.Refresh(ctx, "", login.Tokens.RefreshToken)
	require.NoError(t, err)

	_, err = service.Refresh(ctx, "", login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrInvalidSession)
}
