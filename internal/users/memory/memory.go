// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package memory provides in-process implementations of every users repository.

A single [Store] holds members, administrators, refresh sessions, promotion
requests and trainer likes behind one mutex, so cross-aggregate rules such as
cascading deletes hold exactly as they do in Postgres. It backs the service
tests and `serve --in-memory`.

# Transactions

[PromotionStore.InTx] holds the mutex for the whole callback and restores a
snapshot when the callback fails, which gives serializable behaviour.
*/
package memory

import (
	"maps"
	"sync"
	"time"

	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/promotion"
)

// Store is the shared in-memory state. The zero value is not usable; call [New].
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// Option customises a [Store].
type Option func(*Store)

// WithClock sets the clock used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(store *Store) { store.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	store := &Store{state: newState(), now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Users returns the member repository view of the store.
func (store *Store) Users() *UserRepository { return &UserRepository{store: store} }

// Admins returns the administrator repository view of the store.
func (store *Store) Admins() *AdminRepository { return &AdminRepository{store: store} }

// Sessions returns the refresh session view of the store.
func (store *Store) Sessions() *SessionStore { return &SessionStore{store: store} }

// Profiles returns the profile editing view of the store.
func (store *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{UserRepository: store.Users()}
}

// Promotions returns the promotion workflow view of the store.
func (store *Store) Promotions() *PromotionStore { return &PromotionStore{store: store} }

// locked runs fn while holding the store mutex.
func (store *Store) locked(fn func(st *state) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return fn(store.state)
}

// # State

type like struct {
	userID    string
	trainerID string
	seq       int64
}

type state struct {
	seq int64

	users    map[string]*auth.User
	userSeq  map[string]int64
	admins   map[string]*auth.Admin
	sessions map[auth.PrincipalRef]auth.RefreshSession
	requests map[string]*promotion.Request
	reqSeq   map[string]int64
	likes    []like
}

func newState() *state {
	return &state{
		users:    make(map[string]*auth.User),
		userSeq:  make(map[string]int64),
		admins:   make(map[string]*auth.Admin),
		sessions: make(map[auth.PrincipalRef]auth.RefreshSession),
		requests: make(map[string]*promotion.Request),
		reqSeq:   make(map[string]int64),
	}
}

// next returns a strictly increasing insertion counter.
func (st *state) next() int64 {
	st.seq++
	return st.seq
}

// clone deep-copies the state for transaction rollback.
func (st *state) clone() *state {
	out := &state{
		seq:      st.seq,
		users:    make(map[string]*auth.User, len(st.users)),
		userSeq:  maps.Clone(st.userSeq),
		admins:   make(map[string]*auth.Admin, len(st.admins)),
		sessions: maps.Clone(st.sessions),
		requests: make(map[string]*promotion.Request, len(st.requests)),
		reqSeq:   maps.Clone(st.reqSeq),
		likes:    append([]like(nil), st.likes...),
	}

	for id, user := range st.users {
		out.users[id] = copyUser(user)
	}
	for id, admin := range st.admins {
		out.admins[id] = copyAdmin(admin)
	}
	for id, request := range st.requests {
		out.requests[id] = copyRequest(request)
	}

	return out
}

func copyUser(user *auth.User) *auth.User {
	clone := *user
	return &clone
}

func copyAdmin(admin *auth.Admin) *auth.Admin {
	clone := *admin
	return &clone
}

func copyRequest(request *promotion.Request) *promotion.Request {
	clone := *request
	return &clone
}
