// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package memory

import (
	"context"
	"slices"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/promotion"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// PromotionStore implements [promotion.Store].
//
// Direct calls lock the store per call. [PromotionStore.InTx] locks it once
// and hands the callback a repository that works on the state unlocked.
type PromotionStore struct {
	store *Store
}

var _ promotion.Store = (*PromotionStore)(nil)

// InTx runs fn atomically and rolls the state back when fn fails or panics.
func (promotions *PromotionStore) InTx(ctx context.Context, fn func(repository promotion.Repository) error) error {
	return promotions.store.locked(func(st *state) error {
		snapshot := st.clone()
		committed := false

		defer func() {
			if !committed {
				promotions.store.state = snapshot
			}
		}()

		if err := fn(&txRepository{st: st, store: promotions.store}); err != nil {
			return err
		}

		committed = true
		return nil
	})
}

func (promotions *PromotionStore) run(fn func(repository *txRepository) error) error {
	return promotions.store.locked(func(st *state) error {
		return fn(&txRepository{st: st, store: promotions.store})
	})
}

func (promotions *PromotionStore) CreateRequest(ctx context.Context, request *promotion.Request) error {
	return promotions.run(func(repository *txRepository) error { return repository.CreateRequest(ctx, request) })
}

func (promotions *PromotionStore) FindRequest(ctx context.Context, requestID string) (found *promotion.Request, err error) {
	err = promotions.run(func(repository *txRepository) error {
		found, err = repository.FindRequest(ctx, requestID)
		return err
	})
	return found, err
}

func (promotions *PromotionStore) FindRequestByUser(ctx context.Context, userID string) (found *promotion.Request, err error) {
	err = promotions.run(func(repository *txRepository) error {
		found, err = repository.FindRequestByUser(ctx, userID)
		return err
	})
	return found, err
}

func (promotions *PromotionStore) DeleteRequest(ctx context.Context, requestID string) (removed *promotion.Request, err error) {
	err = promotions.run(func(repository *txRepository) error {
		removed, err = repository.DeleteRequest(ctx, requestID)
		return err
	})
	return removed, err
}

func (promotions *PromotionStore) DeleteRequestByUser(ctx context.Context, userID string) (removed *promotion.Request, err error) {
	err = promotions.run(func(repository *txRepository) error {
		removed, err = repository.DeleteRequestByUser(ctx, userID)
		return err
	})
	return removed, err
}

func (promotions *PromotionStore) ListPending(ctx context.Context, params pagination.Params) (page []*promotion.Request, total int, err error) {
	err = promotions.run(func(repository *txRepository) error {
		page, total, err = repository.ListPending(ctx, params)
		return err
	})
	return page, total, err
}

func (promotions *PromotionStore) LockUser(ctx context.Context, userID string) (user *auth.User, err error) {
	err = promotions.run(func(repository *txRepository) error {
		user, err = repository.LockUser(ctx, userID)
		return err
	})
	return user, err
}

func (promotions *PromotionStore) UpdateRole(ctx context.Context, userID string, to role.Role, introduction string) error {
	return promotions.run(func(repository *txRepository) error {
		return repository.UpdateRole(ctx, userID, to, introduction)
	})
}

func (promotions *PromotionStore) AddLike(ctx context.Context, userID, trainerID string) error {
	return promotions.run(func(repository *txRepository) error { return repository.AddLike(ctx, userID, trainerID) })
}

func (promotions *PromotionStore) RemoveLike(ctx context.Context, userID, trainerID string) error {
	return promotions.run(func(repository *txRepository) error { return repository.RemoveLike(ctx, userID, trainerID) })
}

func (promotions *PromotionStore) DeleteLikesOf(ctx context.Context, trainerID string) error {
	return promotions.run(func(repository *txRepository) error { return repository.DeleteLikesOf(ctx, trainerID) })
}

func (promotions *PromotionStore) ListLikedTrainers(ctx context.Context, userID string, params pagination.Params) (page []*auth.User, total int, err error) {
	err = promotions.run(func(repository *txRepository) error {
		page, total, err = repository.ListLikedTrainers(ctx, userID, params)
		return err
	})
	return page, total, err
}

// # Transaction Scoped Repository

// txRepository operates on state the caller already holds the lock for.
type txRepository struct {
	st    *state
	store *Store
}

func (repository *txRepository) CreateRequest(_ context.Context, request *promotion.Request) error {
	user, ok := repository.st.users[request.UserID]
	if !ok {
		return apperr.NotFound("User")
	}

	for _, existing := range repository.st.requests {
		if existing.UserID == request.UserID {
			return apperr.DuplicateRequest("A promotion request is already pending")
		}
	}

	stored := copyRequest(request)
	stored.Username = user.Username
	stored.Status = promotion.StatusPending

	repository.st.requests[request.ID] = stored
	repository.st.reqSeq[request.ID] = repository.st.next()
	return nil
}

func (repository *txRepository) FindRequest(_ context.Context, requestID string) (*promotion.Request, error) {
	request, ok := repository.st.requests[requestID]
	if !ok {
		return nil, apperr.NotFound("Promotion request")
	}
	return copyRequest(request), nil
}

func (repository *txRepository) FindRequestByUser(_ context.Context, userID string) (*promotion.Request, error) {
	for _, request := range repository.st.requests {
		if request.UserID == userID {
			return copyRequest(request), nil
		}
	}
	return nil, apperr.NotFound("Promotion request")
}

func (repository *txRepository) DeleteRequest(_ context.Context, requestID string) (*promotion.Request, error) {
	request, ok := repository.st.requests[requestID]
	if !ok {
		return nil, apperr.NotFound("Promotion request")
	}

	delete(repository.st.requests, requestID)
	delete(repository.st.reqSeq, requestID)
	return request, nil
}

func (repository *txRepository) DeleteRequestByUser(ctx context.Context, userID string) (*promotion.Request, error) {
	request, err := repository.FindRequestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return repository.DeleteRequest(ctx, request.ID)
}

func (repository *txRepository) ListPending(_ context.Context, params pagination.Params) ([]*promotion.Request, int, error) {
	requests := make([]*promotion.Request, 0, len(repository.st.requests))
	for _, request := range repository.st.requests {
		requests = append(requests, request)
	}

	slices.SortFunc(requests, func(a, b *promotion.Request) int {
		return compareSeq(repository.st.reqSeq[a.ID], repository.st.reqSeq[b.ID], params.Descending())
	})

	var page []*promotion.Request
	for _, request := range pagination.Slice(requests, params) {
		page = append(page, copyRequest(request))
	}

	return page, len(requests), nil
}

func (repository *txRepository) LockUser(_ context.Context, userID string) (*auth.User, error) {
	user, ok := repository.st.users[userID]
	if !ok {
		return nil, apperr.NotFound("User")
	}
	return copyUser(user), nil
}

func (repository *txRepository) UpdateRole(_ context.Context, userID string, to role.Role, introduction string) error {
	return repository.st.updateUser(userID, repository.store.now, func(u *auth.User) {
		u.Role = to
		u.Introduction = introduction
	})
}

func (repository *txRepository) AddLike(_ context.Context, userID, trainerID string) error {
	if _, ok := repository.st.users[userID]; !ok {
		return apperr.NotFound("User")
	}
	if _, ok := repository.st.users[trainerID]; !ok {
		return apperr.NotFound("User")
	}

	for _, l := range repository.st.likes {
		if l.userID == userID && l.trainerID == trainerID {
			return apperr.Conflict("Trainer like already exists")
		}
	}

	repository.st.likes = append(repository.st.likes, like{userID: userID, trainerID: trainerID, seq: repository.st.next()})
	return nil
}

func (repository *txRepository) RemoveLike(_ context.Context, userID, trainerID string) error {
	before := len(repository.st.likes)
	repository.st.likes = slices.DeleteFunc(repository.st.likes, func(l like) bool {
		return l.userID == userID && l.trainerID == trainerID
	})

	if len(repository.st.likes) == before {
		return apperr.NotFound("Trainer like")
	}
	return nil
}

func (repository *txRepository) DeleteLikesOf(_ context.Context, trainerID string) error {
	repository.st.likes = slices.DeleteFunc(repository.st.likes, func(l like) bool {
		return l.trainerID == trainerID
	})
	return nil
}

func (repository *txRepository) ListLikedTrainers(_ context.Context, userID string, params pagination.Params) ([]*auth.User, int, error) {
	var mine []like
	for _, l := range repository.st.likes {
		if l.userID == userID {
			mine = append(mine, l)
		}
	}

	slices.SortFunc(mine, func(a, b like) int {
		return compareSeq(a.seq, b.seq, params.Descending())
	})

	var page []*auth.User
	for _, l := range pagination.Slice(mine, params) {
		if trainer, ok := repository.st.users[l.trainerID]; ok {
			page = append(page, copyUser(trainer))
		}
	}

	return page, len(mine), nil
}
