// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account manages the editable profile of a member.

Identity data (username, email, password) and the role belong to the auth and
promotion packages. This package owns what a member says about themselves: the
nickname and, for trainers, the introduction shown to other members.

# Architecture

  - Domain: Depends on the auth package for the User entity.
  - Policy: Only trainers may carry an introduction.
  - Moderation: Administrators may edit any profile or remove the account.
*/
package account

import (
	"context"

	"github.com/taibuivan/fitclub/internal/platform/validate"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

// Profile edits use the same bounds as sign-up and promotion requests.
const (
	MaxNicknameLength     = validate.NicknameMaxLen
	MaxIntroductionLength = validate.IntroMaxLen
)

// Field names used in validation errors.
const (
	FieldNickname     = "nickname"
	FieldIntroduction = "introduction"
)

// UpdateProfileInput is a partial profile change; nil fields are left alone.
type UpdateProfileInput struct {
	Nickname     *string
	Introduction *string
}

// # Repository Contracts

// Repository defines the persistence contract for member profiles.
type Repository interface {
	/*
		FindByID retrieves a member by primary key.

		Returns:
		  - *auth.User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		UpdateProfile stores the nickname and introduction of user.

		Returns:
		  - error: apperr.NotFound when the member is gone
	*/
	UpdateProfile(context context.Context, user *auth.User) error

	// Delete removes the member together with its request and likes.
	Delete(context context.Context, id string) error
}

// SessionInvalidator drops a member's refresh session. [auth.Service] satisfies it.
type SessionInvalidator interface {
	InvalidateSession(context context.Context, userID string) error
}
