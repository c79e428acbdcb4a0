// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package memory

import (
	"context"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

// SessionStore implements [auth.SessionStore] keyed by principal.
type SessionStore struct {
	store *Store
}

var _ auth.SessionStore = (*SessionStore)(nil)

// Save replaces whatever session the principal had.
func (sessions *SessionStore) Save(_ context.Context, session auth.RefreshSession) error {
	return sessions.store.locked(func(st *state) error {
		st.sessions[session.Principal] = session
		return nil
	})
}

func (sessions *SessionStore) FindByValue(_ context.Context, digest string) (*auth.RefreshSession, error) {
	var found *auth.RefreshSession
	err := sessions.store.locked(func(st *state) error {
		for _, session := range st.sessions {
			if session.TokenDigest == digest {
				found = &session
				return nil
			}
		}
		return apperr.NotFound("Session")
	})
	return found, err
}

// Rotate swaps the session only if it still holds previousDigest.
func (sessions *SessionStore) Rotate(_ context.Context, previousDigest string, next auth.RefreshSession) error {
	return sessions.store.locked(func(st *state) error {
		current, ok := st.sessions[next.Principal]
		if !ok || current.TokenDigest != previousDigest {
			return apperr.InvalidSession()
		}
		st.sessions[next.Principal] = next
		return nil
	})
}

func (sessions *SessionStore) Invalidate(_ context.Context, principal auth.PrincipalRef) error {
	return sessions.store.locked(func(st *state) error {
		delete(st.sessions, principal)
		return nil
	})
}

// Count reports how many live sessions exist.
func (sessions *SessionStore) Count() int {
	var count int
	_ = sessions.store.locked(func(st *state) error {
		count = len(st.sessions)
		return nil
	})
	return count
}
