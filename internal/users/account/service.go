// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/internal/platform/validate"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

// # Service Layer

// Service applies profile changes on behalf of members and administrators.
type Service struct {
	repository Repository
	sessions   SessionInvalidator
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(repository Repository, sessions SessionInvalidator) *Service {
	return &Service{repository: repository, sessions: sessions}
}

// # Profile Management

// GetProfile retrieves the member's own account.
func (service *Service) GetProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.repository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return user, nil
}

/*
UpdateProfile applies a partial set of changes to a member's profile.

Description: Fetches the current account, trims and validates the provided
fields, and persists the result. Setting a non-empty introduction requires
trainer privileges; clearing it is always allowed.

Returns:
  - *auth.User: The updated profile
  - error: Validation, apperr.ErrNotTrainer or apperr.ErrNotFound
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*auth.User, error) {
	user, err := service.repository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	validator := &validate.Validator{}

	if input.Nickname != nil {
		nickname := strings.TrimSpace(*input.Nickname)
		validator.MaxLen(FieldNickname, nickname, MaxNicknameLength)
		user.Nickname = nickname
	}

	if input.Introduction != nil {
		introduction := strings.TrimSpace(*input.Introduction)
		validator.MaxLen(FieldIntroduction, introduction, MaxIntroductionLength)
		if introduction != "" && !user.Role.HasTrainerPrivileges() {
			return nil, apperr.NotTrainer()
		}
		user.Introduction = introduction
	}

	if err := validator.Err(); err != nil {
		return nil, err
	}

	if err := service.repository.UpdateProfile(context, user); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	ctxutil.GetLogger(context).Info("user_profile_updated", slog.String("user_id", userID))

	return user, nil
}

/*
DeleteUser removes a member account as a moderation action.

Description: Deletes the account, which cascades to its pending request and
likes, then drops the refresh session so the member is signed out. A failed
session drop is logged; the account is already gone.

Returns:
  - error: apperr.ErrNotFound or storage failures
*/
func (service *Service) DeleteUser(context context.Context, userID string) error {
	if err := service.repository.Delete(context, userID); err != nil {
		return fmt.Errorf("account_service_delete_failed: %w", err)
	}

	logger := ctxutil.GetLogger(context)
	if err := service.sessions.InvalidateSession(context, userID); err != nil {
		logger.Error("session_invalidation_failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	logger.Warn("user_account_removed", slog.String("user_id", userID))

	return nil
}
