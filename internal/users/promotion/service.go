// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package promotion

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/ctxutil"
	"github.com/taibuivan/fitclub/internal/platform/events"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/validate"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
	"github.com/taibuivan/fitclub/pkg/uuid"
)

// DefaultTopic is where [RoleChanged] events go unless configured otherwise.
const DefaultTopic = "users.role_changed"

// Config carries the optional collaborators of a [Service].
type Config struct {
	Publisher events.Publisher
	Topic     string
	Metrics   *metrics.Metrics
	Clock     func() time.Time
}

// Service orchestrates promotion requests, trainer likes and administrator role changes.
type Service struct {
	store     Store
	accounts  AccountReader
	sessions  SessionInvalidator
	publisher events.Publisher
	topic     string
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService constructs a new [Service].
func NewService(store Store, accounts AccountReader, sessions SessionInvalidator, config Config) *Service {
	service := &Service{
		store:     store,
		accounts:  accounts,
		sessions:  sessions,
		publisher: config.Publisher,
		topic:     config.Topic,
		metrics:   config.Metrics,
		now:       config.Clock,
	}

	if service.publisher == nil {
		service.publisher = events.Noop{}
	}
	if service.topic == "" {
		service.topic = DefaultTopic
	}
	if service.now == nil {
		service.now = time.Now
	}

	return service
}

// change is a committed transition, reported once the transaction is over.
type change struct {
	userID string
	from   role.Role
	to     role.Role
	event  role.Event
}

// # Member Operations

/*
RequestPromotion files a trainer candidacy for userID.

Parameters:
  - context: context.Context
  - userID: string
  - introduction: string (becomes the trainer profile text on approval)

Returns:
  - *Request: The pending request
  - error: apperr.ErrDuplicateRequest if one is already pending,
    apperr.ErrIllegalTransition if the member is not an ordinary USER
*/
func (service *Service) RequestPromotion(context context.Context, userID, introduction string) (*Request, error) {
	introduction = strings.TrimSpace(introduction)

	validator := &validate.Validator{}
	validator.Required(FieldIntroduction, introduction).MaxLen(FieldIntroduction, introduction, validate.IntroMaxLen)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	var (
		request *Request
		applied change
	)

	err := service.store.InTx(context, func(repository Repository) error {
		user, err := repository.LockUser(context, userID)
		if err != nil {
			return err
		}

		applied, err = transitionOf(user, role.EventPromotionRequested)
		if err != nil {
			return err
		}

		// The insert is guarded by a unique constraint as well; this check gives the friendly error.
		if _, err := repository.FindRequestByUser(context, user.ID); err == nil {
			return apperr.DuplicateRequest("A promotion request is already pending")
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		request = &Request{
			ID:           uuid.New(),
			UserID:       user.ID,
			Username:     user.Username,
			Introduction: introduction,
			Status:       StatusPending,
			CreatedAt:    service.now(),
		}

		return repository.CreateRequest(context, request)
	})
	if err != nil {
		return nil, err
	}

	service.committed(context, applied)
	ctxutil.GetLogger(context).Info("promotion_requested",
		slog.String("user_id", userID),
		slog.String("request_id", request.ID),
	)

	return request, nil
}

// WithdrawPromotion deletes the caller's pending request, or fails with apperr.ErrNotFound.
func (service *Service) WithdrawPromotion(context context.Context, userID string) error {
	var applied change

	err := service.store.InTx(context, func(repository Repository) error {
		user, err := repository.LockUser(context, userID)
		if err != nil {
			return err
		}

		applied, err = transitionOf(user, role.EventPromotionWithdrawn)
		if err != nil {
			return err
		}

		_, err = repository.DeleteRequestByUser(context, user.ID)
		return err
	})
	if err != nil {
		return err
	}

	service.committed(context, applied)
	ctxutil.GetLogger(context).Info("promotion_withdrawn", slog.String("user_id", userID))
	return nil
}

// LikeTrainer records that userID likes trainerID. Only current trainers can be liked.
func (service *Service) LikeTrainer(context context.Context, userID, trainerID string) error {
	if userID == trainerID {
		return validate.RequiredError(FieldTrainerID, "You cannot like yourself")
	}

	return service.store.InTx(context, func(repository Repository) error {
		// The lock keeps a concurrent cancellation from leaving a like behind.
		trainer, err := repository.LockUser(context, trainerID)
		if err != nil {
			return err
		}

		if !trainer.Role.HasTrainerPrivileges() {
			return apperr.NotTrainer()
		}

		return repository.AddLike(context, userID, trainer.ID)
	})
}

// UnlikeTrainer removes the like, or fails with apperr.ErrNotFound.
func (service *Service) UnlikeTrainer(context context.Context, userID, trainerID string) error {
	return service.store.RemoveLike(context, userID, trainerID)
}

// ListLikedTrainers pages the trainers userID likes.
func (service *Service) ListLikedTrainers(context context.Context, userID string, params pagination.Params) (pagination.Page[*auth.User], error) {
	params = params.Normalize()

	trainers, total, err := service.store.ListLikedTrainers(context, userID, params)
	if err != nil {
		return pagination.Page[*auth.User]{}, err
	}

	return pageOf(trainers, total, params)
}

// # Administrator Operations

/*
ApprovePromotion makes the requesting member a trainer.

Description: Locks the member, deletes the request, flips the role to TRAINER
and copies the introduction onto the profile, all in one transaction. The
delete is keyed by request id, so a second approval of the same id finds
nothing and fails with apperr.ErrNotFound instead of applying the change twice.

Returns:
  - *auth.User: The member as a trainer
  - error: apperr.ErrNotFound, apperr.ErrIllegalTransition
*/
func (service *Service) ApprovePromotion(context context.Context, requestID string) (*auth.User, error) {
	var (
		user    *auth.User
		applied change
	)

	err := service.store.InTx(context, func(repository Repository) error {
		pending, err := repository.FindRequest(context, requestID)
		if err != nil {
			return err
		}

		// Account before request, the same order as withdraw and cancel.
		user, err = repository.LockUser(context, pending.UserID)
		if err != nil {
			return err
		}

		request, err := repository.DeleteRequest(context, requestID)
		if err != nil {
			return err
		}

		applied, err = transitionOf(user, role.EventPromotionApproved)
		if err != nil {
			return err
		}

		if err := repository.UpdateRole(context, user.ID, applied.to, request.Introduction); err != nil {
			return err
		}

		user.Role = applied.to
		user.Introduction = request.Introduction
		return nil
	})
	if err != nil {
		return nil, err
	}

	service.committed(context, applied)
	ctxutil.GetLogger(context).Info("promotion_approved",
		slog.String("user_id", user.ID),
		slog.String("request_id", requestID),
	)

	return user, nil
}

// RejectPromotion deletes the request without touching the member's role.
func (service *Service) RejectPromotion(context context.Context, requestID string) error {
	request, err := service.store.DeleteRequest(context, requestID)
	if err != nil {
		return err
	}

	ctxutil.GetLogger(context).Info("promotion_rejected",
		slog.String("user_id", request.UserID),
		slog.String("request_id", requestID),
	)
	return nil
}

/*
CancelTrainer turns a trainer back into an ordinary member.

The trainer profile text, likes pointing at the trainer and any stale promotion
request are removed in the same transaction. The member's refresh session is
dropped afterwards so the next renewal cannot carry the old role.

Returns:
  - error: apperr.ErrNotTrainer when the member is not a TRAINER, apperr.ErrNotFound
*/
func (service *Service) CancelTrainer(context context.Context, userID string) error {
	var applied change

	err := service.store.InTx(context, func(repository Repository) error {
		user, err := repository.LockUser(context, userID)
		if err != nil {
			return err
		}

		applied, err = transitionOf(user, role.EventTrainerCancelled)
		if err != nil {
			return err
		}

		if err := repository.UpdateRole(context, user.ID, applied.to, ""); err != nil {
			return err
		}

		if err := repository.DeleteLikesOf(context, user.ID); err != nil {
			return err
		}

		if _, err := repository.DeleteRequestByUser(context, user.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		return nil
	})
	if err != nil {
		return err
	}

	service.committed(context, applied)
	ctxutil.GetLogger(context).Info("trainer_cancelled", slog.String("user_id", userID))
	return nil
}

// ReportUser moves a member or trainer into its moderation mirror state.
func (service *Service) ReportUser(context context.Context, userID string) (*auth.User, error) {
	return service.moderate(context, userID, role.EventReported)
}

// ClearReport restores the role a reported member held before moderation.
func (service *Service) ClearReport(context context.Context, userID string) (*auth.User, error) {
	return service.moderate(context, userID, role.EventReportCleared)
}

func (service *Service) moderate(context context.Context, userID string, event role.Event) (*auth.User, error) {
	var (
		user    *auth.User
		applied change
	)

	err := service.store.InTx(context, func(repository Repository) error {
		var err error
		user, err = repository.LockUser(context, userID)
		if err != nil {
			return err
		}

		applied, err = transitionOf(user, event)
		if err != nil {
			return err
		}

		if err := repository.UpdateRole(context, user.ID, applied.to, user.Introduction); err != nil {
			return err
		}

		user.Role = applied.to
		return nil
	})
	if err != nil {
		return nil, err
	}

	service.committed(context, applied)
	ctxutil.GetLogger(context).Info("user_"+string(event),
		slog.String("user_id", userID),
		slog.String("role", string(applied.to)),
	)

	return user, nil
}

/*
ListPending pages the pending requests for administrator review.

Returns:
  - pagination.Page[*Request]: Oldest first unless params.Sort is desc
  - error: apperr.ErrEmptyPage when the page holds nothing
*/
func (service *Service) ListPending(context context.Context, params pagination.Params) (pagination.Page[*Request], error) {
	params = params.Normalize()

	requests, total, err := service.store.ListPending(context, params)
	if err != nil {
		return pagination.Page[*Request]{}, err
	}

	return pageOf(requests, total, params)
}

// ListUsersByRole pages the accounts currently holding r.
func (service *Service) ListUsersByRole(context context.Context, r role.Role, params pagination.Params) (pagination.Page[*auth.User], error) {
	if !r.Valid() || r == role.Admin {
		return pagination.Page[*auth.User]{}, validate.RequiredError(FieldRole, "Unknown member role")
	}

	params = params.Normalize()

	users, total, err := service.accounts.ListByRole(context, r, params)
	if err != nil {
		return pagination.Page[*auth.User]{}, err
	}

	return pageOf(users, total, params)
}

// FindUser returns an ordinary member. A trainer id fails validation.
func (service *Service) FindUser(context context.Context, userID string) (*auth.User, error) {
	user, err := service.accounts.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if user.Role == role.Trainer || user.Role == role.ReportedTrainer {
		return nil, validate.RequiredError(FieldRole, "Account is a trainer")
	}

	return user, nil
}

// FindTrainer returns a trainer, reported or not. Any other member fails with apperr.ErrNotTrainer.
func (service *Service) FindTrainer(context context.Context, trainerID string) (*auth.User, error) {
	user, err := service.accounts.FindByID(context, trainerID)
	if err != nil {
		return nil, err
	}

	if user.Role != role.Trainer && user.Role != role.ReportedTrainer {
		return nil, apperr.NotTrainer()
	}

	return user, nil
}

// # Helpers

// transitionOf applies event to the member's current role through the central table.
func transitionOf(user *auth.User, event role.Event) (change, error) {
	to, err := role.Transition(user.Role, event)
	if err != nil {
		return change{}, err
	}

	return change{userID: user.ID, from: user.Role, to: to, event: event}, nil
}

/*
committed runs the side effects of a transition once its transaction has committed.

Neither a failed publish nor a failed session drop undoes the role change;
both are logged.
*/
func (service *Service) committed(context context.Context, applied change) {
	logger := ctxutil.GetLogger(context)

	service.metrics.ObserveTransition(string(applied.event), string(applied.from), string(applied.to))

	if role.ReducesPrivileges(applied.event) && service.sessions != nil {
		if err := service.sessions.InvalidateSession(context, applied.userID); err != nil {
			logger.Error("session_invalidation_failed",
				slog.String("user_id", applied.userID),
				slog.String("error", err.Error()),
			)
		}
	}

	if applied.from == applied.to {
		return
	}

	event := RoleChanged{
		UserID: applied.userID,
		From:   applied.from,
		To:     applied.to,
		Event:  string(applied.event),
		At:     service.now(),
	}

	if err := service.publisher.Publish(context, service.topic, event); err != nil {
		logger.Error("role_event_publish_failed",
			slog.String("user_id", applied.userID),
			slog.String("error", err.Error()),
		)
	}
}

// pageOf wraps a query result, reporting an empty page as apperr.ErrEmptyPage.
func pageOf[T any](items []T, total int, params pagination.Params) (pagination.Page[T], error) {
	if len(items) == 0 {
		return pagination.Page[T]{}, apperr.EmptyPage()
	}

	return pagination.NewPage(items, total, params), nil
}
