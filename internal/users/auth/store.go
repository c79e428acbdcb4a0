// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"

	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// # Credential Store

// UserRepository defines the data access contract for member accounts.
//
// Usernames and emails are stored canonicalized (see pkg/canon). Lookups that
// find nothing return [apperr.ErrNotFound].
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	// FindByUsername returns the account with the given canonical username.
	FindByUsername(context context.Context, username string) (*User, error)

	// FindByEmail returns the account with the given canonical email.
	FindByEmail(context context.Context, email string) (*User, error)

	// FindByExternalID returns the account linked to a social login subject.
	FindByExternalID(context context.Context, externalID string) (*User, error)

	/*
		Create persists a brand-new member account.

		Returns:
		  - error: apperr.Conflict when the username or email is taken
	*/
	Create(context context.Context, user *User) error

	// LinkExternalID attaches a social login subject to an existing account.
	LinkExternalID(context context.Context, userID, externalID string) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(context context.Context, userID, passwordHash string) error

	// Delete removes the account and everything it owns.
	Delete(context context.Context, id string) error

	/*
		ListByRole pages accounts holding r, oldest first unless params ask otherwise.

		Returns:
		  - []*User: The page
		  - int: Total number of accounts holding r
		  - error: Retrieval failures
	*/
	ListByRole(context context.Context, r role.Role, params pagination.Params) ([]*User, int, error)
}

// AdminRepository defines the data access contract for administrator accounts.
type AdminRepository interface {
	FindByID(context context.Context, id string) (*Admin, error)
	FindByUsername(context context.Context, username string) (*Admin, error)
	FindByEmail(context context.Context, email string) (*Admin, error)

	// Create returns apperr.Conflict when the username or email is taken.
	Create(context context.Context, admin *Admin) error

	UpdatePassword(context context.Context, adminID, passwordHash string) error
}

// # Refresh Session Store

// SessionStore persists at most one live refresh session per principal.
type SessionStore interface {

	/*
		Save upserts the session, replacing any prior live session of the same principal.

		Two concurrent saves for the same principal leave exactly one survivor;
		the last writer wins.

		Parameters:
		  - context: context.Context
		  - session: RefreshSession

		Returns:
		  - error: Persistence failures
	*/
	Save(context context.Context, session RefreshSession) error

	/*
		FindByValue returns the session holding the given token digest.

		Returns:
		  - *RefreshSession: The live session
		  - error: apperr.NotFound when no session holds the digest
	*/
	FindByValue(context context.Context, digest string) (*RefreshSession, error)

	/*
		Rotate supersedes the session holding previousDigest with next.

		It fails with apperr.ErrInvalidSession when the principal's live session no
		longer holds previousDigest, so a refresh token renews at most once.
	*/
	Rotate(context context.Context, previousDigest string, next RefreshSession) error

	// Invalidate deletes the principal's session. Deleting an absent session is not an error.
	Invalidate(context context.Context, principal PrincipalRef) error
}
