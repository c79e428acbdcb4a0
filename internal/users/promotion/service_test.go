// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package promotion_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/events"
	"github.com/taibuivan/fitclub/internal/platform/metrics"
	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/memory"
	"github.com/taibuivan/fitclub/internal/users/promotion"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

const password = "s3cret-pass"

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	auth     *auth.Service
	tokens   *sec.TokenService
	recorder *events.Recorder
	metrics  *metrics.Metrics
	service  *promotion.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()

	tokens, err := sec.NewTokenService(sec.TokenConfig{
		KeyID:      "k1",
		Secret:     []byte(strings.Repeat("k", sec.MinKeyBytes)),
		Issuer:     "fitclub.test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
	})
	require.NoError(t, err)

	authService := auth.NewService(store.Users(), store.Admins(), store.Sessions(), tokens, nil)
	recorder := &events.Recorder{}
	m := metrics.New(prometheus.NewRegistry())

	service := promotion.NewService(store.Promotions(), store.Users(), authService, promotion.Config{
		Publisher: recorder,
		Metrics:   m,
		Clock:     func() time.Time { return fixedNow },
	})

	return &fixture{store: store, auth: authService, tokens: tokens, recorder: recorder, metrics: m, service: service}
}

// member signs up and logs a new member in, returning the account and its refresh token.
func (f *fixture) member(t *testing.T, username string) (*auth.User, string) {
	t.Helper()

	ctx := context.Background()
	user, err := f.auth.SignUp(ctx, auth.SignUpInput{Username: username, Email: username + "@example.com", Password: password})
	require.NoError(t, err)

	login, err := f.auth.Login(ctx, username, password)
	require.NoError(t, err)

	return user, login.Tokens.RefreshToken
}

// trainer creates a member and walks it through an approved promotion.
func (f *fixture) trainer(t *testing.T, username string) (*auth.User, string) {
	t.Helper()

	ctx := context.Background()
	user, refresh := f.member(t, username)

	request, err := f.service.RequestPromotion(ctx, user.ID, "Certified coach")
	require.NoError(t, err)

	promoted, err := f.service.ApprovePromotion(ctx, request.ID)
	require.NoError(t, err)

	return promoted, refresh
}

func (f *fixture) roleOf(t *testing.T, userID string) role.Role {
	t.Helper()

	user, err := f.store.Users().FindByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Role
}

/*
TestService_PromotionLifecycle follows a member from candidacy to trainer.
*/
func TestService_PromotionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.member(t, "alice")

	request, err := f.service.RequestPromotion(ctx, alice.ID, "  Ten years of coaching  ")
	require.NoError(t, err)
	assert.Equal(t, "Ten years of coaching", request.Introduction)
	assert.Equal(t, promotion.StatusPending, request.Status)
	assert.Equal(t, "alice", request.Username)

	_, err = f.service.RequestPromotion(ctx, alice.ID, "Again")
	assert.ErrorIs(t, err, apperr.ErrDuplicateRequest)

	pending, err := f.service.ListPending(ctx, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, request.ID, pending.Items[0].ID)

	// Requesting does not change the role
	assert.Equal(t, role.User, f.roleOf(t, alice.ID))
	assert.Empty(t, f.recorder.Messages())

	promoted, err := f.service.ApprovePromotion(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Trainer, promoted.Role)
	assert.Equal(t, "Ten years of coaching", promoted.Introduction)
	assert.Equal(t, role.Trainer, f.roleOf(t, alice.ID))

	_, err = f.service.ListPending(ctx, pagination.Params{})
	assert.ErrorIs(t, err, apperr.ErrEmptyPage)

	messages := f.recorder.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, promotion.DefaultTopic, messages[0].Topic)
	assert.Equal(t, promotion.RoleChanged{
		UserID: alice.ID,
		From:   role.User,
		To:     role.Trainer,
		Event:  string(role.EventPromotionApproved),
		At:     fixedNow,
	}, messages[0].Payload)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RoleTransitions.WithLabelValues("promotion_approved", "USER", "TRAINER")))

	// A trainer cannot apply again
	_, err = f.service.RequestPromotion(ctx, alice.ID, "More")
	assert.ErrorIs(t, err, apperr.ErrIllegalTransition)
}

/*
TestService_RequestValidation checks the introduction rules and unknown members.
*/
func TestService_RequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.member(t, "alice")

	tests := []struct {
		name         string
		userID       string
		introduction string
		wantCode     string
	}{
		{name: "blank_introduction", userID: alice.ID, introduction: "   ", wantCode: apperr.CodeValidation},
		{name: "oversized_introduction", userID: alice.ID, introduction: strings.Repeat("x", 1001), wantCode: apperr.CodeValidation},
		{name: "unknown_member", userID: "00000000-0000-0000-0000-000000000000", introduction: "Hi", wantCode: apperr.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RequestPromotion(ctx, tt.userID, tt.introduction)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperr.As(err).Code)
		})
	}
}

/*
TestService_WithdrawAndReject verifies both ways a request disappears without a role change.
*/
func TestService_WithdrawAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.member(t, "alice")
	bob, _ := f.member(t, "bobby")

	_, err := f.service.RequestPromotion(ctx, alice.ID, "Hello")
	require.NoError(t, err)
	require.NoError(t, f.service.WithdrawPromotion(ctx, alice.ID))
	assert.ErrorIs(t, f.service.WithdrawPromotion(ctx, alice.ID), apperr.ErrNotFound)

	request, err := f.service.RequestPromotion(ctx, bob.ID, "Hello")
	require.NoError(t, err)
	require.NoError(t, f.service.RejectPromotion(ctx, request.ID))
	assert.ErrorIs(t, f.service.RejectPromotion(ctx, request.ID), apperr.ErrNotFound)

	_, err = f.service.ApprovePromotion(ctx, request.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, role.User, f.roleOf(t, bob.ID))

	// A rejected member may apply again
	_, err = f.service.RequestPromotion(ctx, bob.ID, "Second try")
	assert.NoError(t, err)
}

/*
TestService_ConcurrentApproval verifies that racing approvals apply the change once.
*/
func TestService_ConcurrentApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.member(t, "alice")

	request, err := f.service.RequestPromotion(ctx, alice.ID, "Coach")
	require.NoError(t, err)

	const racers = 4
	results := make([]error, racers)

	var group errgroup.Group
	for i := range racers {
		group.Go(func() error {
			_, results[i] = f.service.ApprovePromotion(ctx, request.ID)
			return nil
		})
	}
	require.NoError(t, group.Wait())

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	}

	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.recorder.Messages(), 1)
}

/*
TestService_ApproveRacesWithdraw verifies that an approval and a withdrawal of the
same request settle on one outcome with a domain error for the loser.
*/
func TestService_ApproveRacesWithdraw(t *testing.T) {
	for i := range 8 {
		f := newFixture(t)
		ctx := context.Background()
		alice, _ := f.member(t, "alice")

		request, err := f.service.RequestPromotion(ctx, alice.ID, "Coach")
		require.NoError(t, err)

		var approveErr, withdrawErr error
		var group errgroup.Group
		group.Go(func() error {
			_, approveErr = f.service.ApprovePromotion(ctx, request.ID)
			return nil
		})
		group.Go(func() error {
			withdrawErr = f.service.WithdrawPromotion(ctx, alice.ID)
			return nil
		})
		require.NoError(t, group.Wait())

		require.True(t, (approveErr == nil) != (withdrawErr == nil), "round %d: approve=%v withdraw=%v", i, approveErr, withdrawErr)

		loser := approveErr
		want := role.User
		if approveErr == nil {
			loser = withdrawErr
			want = role.Trainer
		}

		require.NotNil(t, apperr.As(loser))
		assert.NotEqual(t, apperr.CodeInternal, apperr.As(loser).Code)
		assert.Equal(t, want, f.roleOf(t, alice.ID))

		_, err = f.store.Promotions().FindRequest(ctx, request.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	}
}

/*
TestService_CancelTrainer verifies the demotion and its cleanup.
*/
func TestService_CancelTrainer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	coach, coachRefresh := f.trainer(t, "coach")
	fan, _ := f.member(t, "fanny")
	require.NoError(t, f.service.LikeTrainer(ctx, fan.ID, coach.ID))

	require.NoError(t, f.service.CancelTrainer(ctx, coach.ID))

	demoted, err := f.store.Users().FindByID(ctx, coach.ID)
	require.NoError(t, err)
	assert.Equal(t, role.User, demoted.Role)
	assert.Empty(t, demoted.Introduction)

	_, err = f.service.ListLikedTrainers(ctx, fan.ID, pagination.Params{})
	assert.ErrorIs(t, err, apperr.ErrEmptyPage)

	// The demoted trainer has to log in again
	_, err = f.auth.Refresh(ctx, "", coachRefresh)
	assert.ErrorIs(t, err, apperr.ErrInvalidSession)

	assert.ErrorIs(t, f.service.CancelTrainer(ctx, coach.ID), apperr.ErrNotTrainer)
	assert.ErrorIs(t, f.service.CancelTrainer(ctx, fan.ID), apperr.ErrNotTrainer)

	messages := f.recorder.Messages()
	require.Len(t, messages, 2)
	last := messages[1].Payload.(promotion.RoleChanged)
	assert.Equal(t, role.Trainer, last.From)
	assert.Equal(t, role.User, last.To)
	assert.Equal(t, string(role.EventTrainerCancelled), last.Event)
}

/*
TestService_Moderation covers reporting and clearing members and trainers.
*/
func TestService_Moderation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, aliceRefresh := f.member(t, "alice")
	coach, _ := f.trainer(t, "coach")

	tests := []struct {
		name   string
		action func(context.Context, string) (*auth.User, error)
		userID string
		want   role.Role
		err    error
	}{
		{name: "report_member", action: f.service.ReportUser, userID: alice.ID, want: role.Reported},
		{name: "report_twice", action: f.service.ReportUser, userID: alice.ID, err: apperr.ErrIllegalTransition},
		{name: "clear_member", action: f.service.ClearReport, userID: alice.ID, want: role.User},
		{name: "clear_unreported", action: f.service.ClearReport, userID: alice.ID, err: apperr.ErrIllegalTransition},
		{name: "report_trainer", action: f.service.ReportUser, userID: coach.ID, want: role.ReportedTrainer},
		{name: "clear_trainer", action: f.service.ClearReport, userID: coach.ID, want: role.Trainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := tt.action(ctx, tt.userID)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.Role)
			assert.Equal(t, tt.want, f.roleOf(t, tt.userID))
		})
	}

	// Reporting dropped the member session
	_, err := f.auth.Refresh(ctx, "", aliceRefresh)
	assert.ErrorIs(t, err, apperr.ErrInvalidSession)

	// The trainer kept its profile through moderation
	restored, err := f.service.FindTrainer(ctx, coach.ID)
	require.NoError(t, err)
	assert.Equal(t, "Certified coach", restored.Introduction)
}

/*
TestService_Likes covers the like rules and listing.
*/
func TestService_Likes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fan, _ := f.member(t, "fanny")
	other, _ := f.member(t, "other")
	first, _ := f.trainer(t, "coach1")
	second, _ := f.trainer(t, "coach2")

	_, err := f.service.ListLikedTrainers(ctx, fan.ID, pagination.Params{})
	assert.ErrorIs(t, err, apperr.ErrEmptyPage)

	require.NoError(t, f.service.LikeTrainer(ctx, fan.ID, first.ID))
	require.NoError(t, f.service.LikeTrainer(ctx, fan.ID, second.ID))

	t.Run("rules", func(t *testing.T) {
		assert.ErrorIs(t, f.service.LikeTrainer(ctx, fan.ID, first.ID), apperr.ErrConflict)
		assert.ErrorIs(t, f.service.LikeTrainer(ctx, fan.ID, other.ID), apperr.ErrNotTrainer)
		assert.Equal(t, apperr.CodeValidation, apperr.As(f.service.LikeTrainer(ctx, first.ID, first.ID)).Code)
	})

	page, err := f.service.ListLikedTrainers(ctx, fan.ID, pagination.Params{Sort: pagination.SortDesc})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.Equal(t, 2, page.Meta.Total)

	// A reported trainer cannot collect likes
	_, err = f.service.ReportUser(ctx, second.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.service.LikeTrainer(ctx, other.ID, second.ID), apperr.ErrNotTrainer)

	require.NoError(t, f.service.UnlikeTrainer(ctx, fan.ID, first.ID))
	assert.ErrorIs(t, f.service.UnlikeTrainer(ctx, fan.ID, first.ID), apperr.ErrNotFound)
}

/*
TestService_ListPendingOrder verifies creation order and paging.
*/
func TestService_ListPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"amber", "brook", "cedar"} {
		user, _ := f.member(t, name)
		request, err := f.service.RequestPromotion(ctx, user.ID, "Intro of "+name)
		require.NoError(t, err)
		ids = append(ids, request.ID)
	}

	ascending, err := f.service.ListPending(ctx, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, ascending.Items, 2)
	assert.Equal(t, ids[0], ascending.Items[0].ID)
	assert.Equal(t, pagination.Meta{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, ascending.Meta)

	descending, err := f.service.ListPending(ctx, pagination.Params{Sort: pagination.SortDesc})
	require.NoError(t, err)
	assert.Equal(t, ids[2], descending.Items[0].ID)

	_, err = f.service.ListPending(ctx, pagination.Params{Page: 3, Limit: 2})
	assert.ErrorIs(t, err, apperr.ErrEmptyPage)
}

/*
TestService_Lookups covers the administrator read operations.
*/
func TestService_Lookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, _ := f.member(t, "alice")
	coach, _ := f.trainer(t, "coach")

	users, err := f.service.ListUsersByRole(ctx, role.User, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, users.Items, 1)
	assert.Equal(t, alice.ID, users.Items[0].ID)

	trainers, err := f.service.ListUsersByRole(ctx, role.Trainer, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, coach.ID, trainers.Items[0].ID)

	_, err = f.service.ListUsersByRole(ctx, role.Reported, pagination.Params{})
	assert.ErrorIs(t, err, apperr.ErrEmptyPage)

	for _, invalid := range []role.Role{role.Admin, role.Role("OWNER")} {
		_, err = f.service.ListUsersByRole(ctx, invalid, pagination.Params{})
		assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code, invalid)
	}

	found, err := f.service.FindUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)

	_, err = f.service.FindUser(ctx, coach.ID)
	assert.Equal(t, apperr.CodeValidation, apperr.As(err).Code)

	_, err = f.service.FindTrainer(ctx, alice.ID)
	assert.ErrorIs(t, err, apperr.ErrNotTrainer)
}

/*
TestService_PublishFailureKeepsChange checks that a broker error does not undo a committed transition.
*/
func TestService_PublishFailureKeepsChange(t *testing.T) {
	f := newFixture(t)
	f.recorder.Err = errors.New("broker down")
	ctx := context.Background()

	alice, _ := f.member(t, "alice")
	request, err := f.service.RequestPromotion(ctx, alice.ID, "Coach")
	require.NoError(t, err)

	_, err = f.service.ApprovePromotion(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, role.Trainer, f.roleOf(t, alice.ID))
	assert.Len(t, f.recorder.Messages(), 1)
}
