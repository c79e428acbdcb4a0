// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/constants"
)

// maxWatchRetries bounds optimistic retries when another writer touches the same principal.
const maxWatchRetries = 5

// RedisSessionStore implements [SessionStore] in Redis.
//
// # Layout
//
//	auth:session:principal:<kind>:<id> -> token digest
//	auth:session:token:<digest>        -> JSON session record
//
// Both keys are written in one MULTI under WATCH of the principal key and
// expire after the refresh token lifetime.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store whose keys live for ttl.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

type redisSessionRecord struct {
	Kind      Kind      `json:"knd"`
	ID        string    `json:"pid"`
	ExpiresAt time.Time `json:"exp"`
	CreatedAt time.Time `json:"iat"`
}

func principalKey(principal PrincipalRef) string {
	return fmt.Sprintf("%s%s:%s", constants.RedisPrefixSessionPrincipal, principal.Kind, principal.ID)
}

func tokenKey(digest string) string {
	return constants.RedisPrefixSessionToken + digest
}

/*
Save upserts the principal's session.

The previous token key of the principal is deleted in the same transaction,
so a superseded refresh token can no longer be found.
*/
func (store *RedisSessionStore) Save(context context.Context, session RefreshSession) error {
	key := principalKey(session.Principal)

	err := store.watch(context, key, func(tx *redis.Tx) error {
		previous, err := tx.Get(context, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		return store.write(context, tx, previous, session)
	})
	if err != nil {
		return fmt.Errorf("redis_session_store_save_failed: %w", err)
	}

	return nil
}

// FindByValue looks a session up by token digest.
func (store *RedisSessionStore) FindByValue(context context.Context, digest string) (*RefreshSession, error) {
	raw, err := store.client.Get(context, tokenKey(digest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.NotFound("Refresh session")
		}
		return nil, fmt.Errorf("redis_session_store_find_failed: %w", err)
	}

	var record redisSessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("redis_session_store_decode_failed: %w", err)
	}

	return &RefreshSession{
		Principal:   PrincipalRef{Kind: record.Kind, ID: record.ID},
		TokenDigest: digest,
		ExpiresAt:   record.ExpiresAt,
		CreatedAt:   record.CreatedAt,
	}, nil
}

// Rotate replaces the digest only if the principal key still holds previousDigest.
func (store *RedisSessionStore) Rotate(context context.Context, previousDigest string, next RefreshSession) error {
	key := principalKey(next.Principal)

	err := store.watch(context, key, func(tx *redis.Tx) error {
		current, err := tx.Get(context, key).Result()
		if errors.Is(err, redis.Nil) || (err == nil && current != previousDigest) {
			return apperr.InvalidSession()
		}
		if err != nil {
			return err
		}

		return store.write(context, tx, current, next)
	})

	if errors.Is(err, apperr.ErrInvalidSession) {
		return err
	}
	if err != nil {
		return fmt.Errorf("redis_session_store_rotate_failed: %w", err)
	}

	return nil
}

// Invalidate deletes the principal's session, if any.
func (store *RedisSessionStore) Invalidate(context context.Context, principal PrincipalRef) error {
	key := principalKey(principal)

	err := store.watch(context, key, func(tx *redis.Tx) error {
		digest, err := tx.Get(context, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(context, func(pipe redis.Pipeliner) error {
			pipe.Del(context, key, tokenKey(digest))
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis_session_store_invalidate_failed: %w", err)
	}

	return nil
}

// write replaces the principal's token key inside the watched transaction.
func (store *RedisSessionStore) write(context context.Context, tx *redis.Tx, previousDigest string, session RefreshSession) error {
	payload, err := json.Marshal(redisSessionRecord{
		Kind:      session.Principal.Kind,
		ID:        session.Principal.ID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return err
	}

	_, err = tx.TxPipelined(context, func(pipe redis.Pipeliner) error {
		if previousDigest != "" && previousDigest != session.TokenDigest {
			pipe.Del(context, tokenKey(previousDigest))
		}
		pipe.Set(context, principalKey(session.Principal), session.TokenDigest, store.ttl)
		pipe.Set(context, tokenKey(session.TokenDigest), payload, store.ttl)
		return nil
	})

	return err
}

// watch runs fn under WATCH key, retrying when a concurrent writer wins the race.
func (store *RedisSessionStore) watch(context context.Context, key string, fn func(tx *redis.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = store.client.Watch(context, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}
