// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// # Members

// UserRepository implements [auth.UserRepository].
type UserRepository struct {
	store *Store
}

var _ auth.UserRepository = (*UserRepository)(nil)

func (repository *UserRepository) find(match func(*auth.User) bool) (*auth.User, error) {
	var found *auth.User
	err := repository.store.locked(func(st *state) error {
		user, err := st.findUser(match)
		found = user
		return err
	})
	return found, err
}

func (st *state) findUser(match func(*auth.User) bool) (*auth.User, error) {
	for _, user := range st.users {
		if match(user) {
			return copyUser(user), nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *UserRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	return repository.find(func(u *auth.User) bool { return u.ID == id })
}

func (repository *UserRepository) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	return repository.find(func(u *auth.User) bool { return u.Username == username })
}

func (repository *UserRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	return repository.find(func(u *auth.User) bool { return u.Email == email })
}

func (repository *UserRepository) FindByExternalID(_ context.Context, externalID string) (*auth.User, error) {
	if externalID == "" {
		return nil, apperr.NotFound("User")
	}
	return repository.find(func(u *auth.User) bool { return u.ExternalID == externalID })
}

// Create enforces the same unique keys as users.account.
func (repository *UserRepository) Create(_ context.Context, user *auth.User) error {
	return repository.store.locked(func(st *state) error {
		for _, existing := range st.users {
			switch {
			case existing.ID == user.ID:
				return apperr.Conflict("Account already exists")
			case existing.Username == user.Username:
				return apperr.Conflict("Username is already taken")
			case existing.Email == user.Email:
				return apperr.Conflict("Email is already registered")
			case user.ExternalID != "" && existing.ExternalID == user.ExternalID:
				return apperr.Conflict("Social account is already linked")
			}
		}

		if user.CreatedAt.IsZero() {
			user.CreatedAt = repository.store.now()
		}
		if user.UpdatedAt.IsZero() {
			user.UpdatedAt = user.CreatedAt
		}

		st.users[user.ID] = copyUser(user)
		st.userSeq[user.ID] = st.next()
		return nil
	})
}

func (repository *UserRepository) LinkExternalID(_ context.Context, userID, externalID string) error {
	return repository.store.locked(func(st *state) error {
		for _, existing := range st.users {
			if existing.ID != userID && existing.ExternalID == externalID {
				return apperr.Conflict("Social account is already linked")
			}
		}
		return st.updateUser(userID, repository.store.now, func(u *auth.User) { u.ExternalID = externalID })
	})
}

func (repository *UserRepository) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return repository.store.locked(func(st *state) error {
		return st.updateUser(userID, repository.store.now, func(u *auth.User) { u.PasswordHash = passwordHash })
	})
}

// Delete removes the member with its promotion request and every like it is part of.
func (repository *UserRepository) Delete(_ context.Context, id string) error {
	return repository.store.locked(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return apperr.NotFound("User")
		}

		delete(st.users, id)
		delete(st.userSeq, id)

		for requestID, request := range st.requests {
			if request.UserID == id {
				delete(st.requests, requestID)
				delete(st.reqSeq, requestID)
			}
		}

		st.likes = slices.DeleteFunc(st.likes, func(l like) bool {
			return l.userID == id || l.trainerID == id
		})

		return nil
	})
}

// ListByRole pages members holding r in creation order.
func (repository *UserRepository) ListByRole(_ context.Context, r role.Role, params pagination.Params) ([]*auth.User, int, error) {
	var (
		page  []*auth.User
		total int
	)

	err := repository.store.locked(func(st *state) error {
		var matched []*auth.User
		for _, user := range st.users {
			if user.Role == r {
				matched = append(matched, user)
			}
		}

		slices.SortFunc(matched, func(a, b *auth.User) int {
			return compareSeq(st.userSeq[a.ID], st.userSeq[b.ID], params.Descending())
		})

		total = len(matched)
		for _, user := range pagination.Slice(matched, params) {
			page = append(page, copyUser(user))
		}
		return nil
	})

	return page, total, err
}

func (st *state) updateUser(id string, now func() time.Time, mutate func(*auth.User)) error {
	user, ok := st.users[id]
	if !ok {
		return apperr.NotFound("User")
	}
	mutate(user)
	user.UpdatedAt = now()
	return nil
}

// # Administrators

// AdminRepository implements [auth.AdminRepository].
type AdminRepository struct {
	store *Store
}

var _ auth.AdminRepository = (*AdminRepository)(nil)

func (repository *AdminRepository) find(match func(*auth.Admin) bool) (*auth.Admin, error) {
	var found *auth.Admin
	err := repository.store.locked(func(st *state) error {
		for _, admin := range st.admins {
			if match(admin) {
				found = copyAdmin(admin)
				return nil
			}
		}
		return apperr.NotFound("Admin")
	})
	return found, err
}

func (repository *AdminRepository) FindByID(_ context.Context, id string) (*auth.Admin, error) {
	return repository.find(func(a *auth.Admin) bool { return a.ID == id })
}

func (repository *AdminRepository) FindByUsername(_ context.Context, username string) (*auth.Admin, error) {
	return repository.find(func(a *auth.Admin) bool { return a.Username == username })
}

func (repository *AdminRepository) FindByEmail(_ context.Context, email string) (*auth.Admin, error) {
	return repository.find(func(a *auth.Admin) bool { return a.Email == email })
}

func (repository *AdminRepository) Create(_ context.Context, admin *auth.Admin) error {
	return repository.store.locked(func(st *state) error {
		for _, existing := range st.admins {
			switch {
			case existing.ID == admin.ID:
				return apperr.Conflict("Account already exists")
			case existing.Username == admin.Username:
				return apperr.Conflict("Username is already taken")
			case existing.Email == admin.Email:
				return apperr.Conflict("Email is already registered")
			}
		}

		if admin.CreatedAt.IsZero() {
			admin.CreatedAt = repository.store.now()
		}
		if admin.UpdatedAt.IsZero() {
			admin.UpdatedAt = admin.CreatedAt
		}

		st.admins[admin.ID] = copyAdmin(admin)
		return nil
	})
}

func (repository *AdminRepository) UpdatePassword(_ context.Context, adminID, passwordHash string) error {
	return repository.store.locked(func(st *state) error {
		admin, ok := st.admins[adminID]
		if !ok {
			return apperr.NotFound("Admin")
		}
		admin.PasswordHash = passwordHash
		admin.UpdatedAt = repository.store.now()
		return nil
	})
}

// compareSeq orders two insertion counters, newest first when descending.
func compareSeq(a, b int64, descending bool) int {
	if descending {
		return cmp.Compare(b, a)
	}
	return cmp.Compare(a, b)
}
