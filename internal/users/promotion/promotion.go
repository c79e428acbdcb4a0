// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package promotion manages trainer candidacy and every administrator-driven role change.

A member asks to become a trainer by filing a [Request]. An administrator then
approves or rejects it. Approval, cancellation and moderation all move the
member's role through [role.Transition], always inside one transaction
together with the request and like bookkeeping they imply.

# Lifecycle

A persisted request is always pending. Approved, rejected and withdrawn
requests are deleted rather than kept with another status, so "exists" and
"pending" mean the same thing.
*/
package promotion

import (
	"context"
	"time"

	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// # Domain Entities

// StatusPending is the only status a stored request can have.
const StatusPending = "pending"

// Request is a member's pending ask to become a trainer.
type Request struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	Introduction string    `json:"introduction"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleChanged is published after a committed transition changed a member's role.
type RoleChanged struct {
	UserID string    `json:"user_id"`
	From   role.Role `json:"from"`
	To     role.Role `json:"to"`
	Event  string    `json:"event"`
	At     time.Time `json:"at"`
}

// Field names for validation errors in the promotion domain.
const (
	FieldIntroduction = "introduction"
	FieldTrainerID    = "trainer_id"
	FieldRole         = "role"
)

// # Repository

// Repository is the data access contract of the workflow.
//
// Methods are invoked either directly on a [Store] or on the transaction
// scoped Repository handed to [Store.InTx].
type Repository interface {

	/*
		CreateRequest persists a pending request.

		Returns:
		  - error: apperr.ErrDuplicateRequest when the user already has one
	*/
	CreateRequest(context context.Context, request *Request) error

	// FindRequest returns the request with requestID without locking it, or apperr.ErrNotFound.
	FindRequest(context context.Context, requestID string) (*Request, error)

	// FindRequestByUser returns the pending request of userID, or apperr.ErrNotFound.
	FindRequestByUser(context context.Context, userID string) (*Request, error)

	/*
		DeleteRequest removes the request and returns what was removed.

		Of two concurrent calls for the same id, exactly one gets the request;
		the other observes apperr.ErrNotFound.
	*/
	DeleteRequest(context context.Context, requestID string) (*Request, error)

	// DeleteRequestByUser removes the pending request of userID, or returns apperr.ErrNotFound.
	DeleteRequestByUser(context context.Context, userID string) (*Request, error)

	// ListPending pages pending requests in insertion order unless params ask otherwise.
	ListPending(context context.Context, params pagination.Params) ([]*Request, int, error)

	// LockUser loads a member and keeps it from changing until the transaction ends.
	LockUser(context context.Context, userID string) (*auth.User, error)

	// UpdateRole stores the member's new role and trainer introduction.
	UpdateRole(context context.Context, userID string, to role.Role, introduction string) error

	// AddLike records that userID likes trainerID; apperr.ErrConflict if it already does.
	AddLike(context context.Context, userID, trainerID string) error

	// RemoveLike deletes the like, or returns apperr.ErrNotFound.
	RemoveLike(context context.Context, userID, trainerID string) error

	// DeleteLikesOf removes every like pointing at trainerID.
	DeleteLikesOf(context context.Context, trainerID string) error

	// ListLikedTrainers pages the trainers userID likes, most recent like last.
	ListLikedTrainers(context context.Context, userID string, params pagination.Params) ([]*auth.User, int, error)
}

// Store is a [Repository] that can also open a transaction.
type Store interface {
	Repository

	/*
		InTx runs fn against a transaction-scoped Repository.

		The transaction commits when fn returns nil and rolls back otherwise.
		Isolation is at least read committed.
	*/
	InTx(context context.Context, fn func(repository Repository) error) error
}

// AccountReader is the part of [auth.UserRepository] the workflow reads outside transactions.
type AccountReader interface {
	FindByID(context context.Context, id string) (*auth.User, error)
	ListByRole(context context.Context, r role.Role, params pagination.Params) ([]*auth.User, int, error)
}

// SessionInvalidator drops a member's refresh session. [auth.Service] satisfies it.
type SessionInvalidator interface {
	InvalidateSession(context context.Context, userID string) error
}
