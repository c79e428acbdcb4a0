// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"time"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/postgres"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

// PostgresRepository implements [Repository] on users.account.
//
// Lookups and deletes reuse the auth user repository; only the profile
// write is specific to this package.
type PostgresRepository struct {
	*auth.PostgresUserRepository
	db postgres.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a profile repository over a pool or a transaction.
func NewPostgresRepository(db postgres.DBTX) *PostgresRepository {
	return &PostgresRepository{PostgresUserRepository: auth.NewUserRepository(db), db: db}
}

/*
UpdateProfile syncs the nickname and introduction and refreshes updatedat.

Returns:
  - error: apperr.NotFound when no row matched
*/
func (repository *PostgresRepository) UpdateProfile(context context.Context, user *auth.User) error {
	const query = `
		UPDATE users.account
		SET nickname = $2, introduction = $3, updatedat = $4
		WHERE id = $1`

	user.UpdatedAt = time.Now().UTC()

	tag, err := repository.db.Exec(context, query, user.ID, user.Nickname, user.Introduction, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_failed: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}

	return nil
}
