// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package memory

import (
	"context"

	"github.com/taibuivan/fitclub/internal/users/account"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

// ProfileRepository implements [account.Repository] on top of the member view.
type ProfileRepository struct {
	*UserRepository
}

var _ account.Repository = (*ProfileRepository)(nil)

func (repository *ProfileRepository) UpdateProfile(_ context.Context, user *auth.User) error {
	return repository.store.locked(func(st *state) error {
		err := st.updateUser(user.ID, repository.store.now, func(u *auth.User) {
			u.Nickname = user.Nickname
			u.Introduction = user.Introduction
		})
		if err != nil {
			return err
		}
		user.UpdatedAt = st.users[user.ID].UpdatedAt
		return nil
	})
}
