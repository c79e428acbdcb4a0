// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/fitclub/internal/platform/apperr"
	"github.com/taibuivan/fitclub/internal/platform/constants"
	"github.com/taibuivan/fitclub/internal/platform/middleware"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/internal/platform/sec"
	"github.com/taibuivan/fitclub/internal/users/account"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/memory"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/uuid"
)

const password = "s3cret-pass"

type fixture struct {
	store   *memory.Store
	auth    *auth.Service
	tokens  *sec.TokenService
	service *account.Service
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

	return &fixture{
		store:   store,
		auth:    authService,
		tokens:  tokens,
		service: account.NewService(store.Profiles(), authService),
	}
}

// member signs username up and returns the account with a fresh access token.
func (f *fixture) member(t *testing.T, username string) (*auth.User, string) {
	t.Helper()

	ctx := context.Background()
	user, err := f.auth.SignUp(ctx, auth.SignUpInput{Username: username, Email: username + "@example.com", Password: password})
	require.NoError(t, err)

	login, err := f.auth.Login(ctx, username, password)
	require.NoError(t, err)

	return user, login.Tokens.AccessToken
}

func text(s string) *string { return &s }

/*
TestService_UpdateProfile verifies partial updates and the trainer-only introduction.
*/
func TestService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.member(t, "alice")

	updated, err := f.service.UpdateProfile(ctx, alice.ID, account.UpdateProfileInput{Nickname: text("  Ali  ")})
	require.NoError(t, err)
	assert.Equal(t, "Ali", updated.Nickname)

	tests := []struct {
		name     string
		input    account.UpdateProfileInput
		wantCode string
	}{
		{name: "nickname_too_long", input: account.UpdateProfileInput{Nickname: text(strings.Repeat("n", account.MaxNicknameLength+1))}, wantCode: apperr.CodeValidation},
		{name: "introduction_for_member", input: account.UpdateProfileInput{Introduction: text("I coach")}, wantCode: apperr.CodeNotTrainer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.UpdateProfile(ctx, alice.ID, tt.input)
			require.Error(t, err)
			require.NotNil(t, apperr.As(err))
			assert.Equal(t, tt.wantCode, apperr.As(err).Code)
		})
	}

	// Clearing is fine for anyone, and absent fields stay untouched
	cleared, err := f.service.UpdateProfile(ctx, alice.ID, account.UpdateProfileInput{Introduction: text("")})
	require.NoError(t, err)
	assert.Equal(t, "Ali", cleared.Nickname)

	_, err = f.service.UpdateProfile(ctx, uuid.New(), account.UpdateProfileInput{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

/*
TestService_TrainerIntroduction verifies trainers may rewrite their introduction.
*/
func TestService_TrainerIntroduction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coach, _ := f.member(t, "coach")

	require.NoError(t, f.store.Promotions().UpdateRole(ctx, coach.ID, role.Trainer, "Old intro"))

	updated, err := f.service.UpdateProfile(ctx, coach.ID, account.UpdateProfileInput{Introduction: text("New intro")})
	require.NoError(t, err)
	assert.Equal(t, "New intro", updated.Introduction)

	stored, err := f.service.GetProfile(ctx, coach.ID)
	require.NoError(t, err)
	assert.Equal(t, "New intro", stored.Introduction)
	assert.Equal(t, role.Trainer, stored.Role)
}

/*
TestService_DeleteUser verifies the account and its session are removed.
*/
func TestService_DeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := f.member(t, "alice")
	require.Equal(t, 1, f.store.Sessions().Count())

	require.NoError(t, f.service.DeleteUser(ctx, alice.ID))
	assert.Zero(t, f.store.Sessions().Count())

	_, err := f.service.GetProfile(ctx, alice.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = f.service.DeleteUser(ctx, alice.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// # HTTP

func newRouter(f *fixture) http.Handler {
	handler := account.NewHandler(f.service, middleware.Authenticate(f.tokens, nil))

	router := chi.NewRouter()
	router.Route("/users", handler.UserRoutes)
	router.Route("/admins", handler.AdminRoutes)
	return router
}

func do(t *testing.T, router http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	request := httptest.NewRequest(method, target, &payload)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set(constants.HeaderAuthorization, token)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

type profileBody struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

/*
TestHandler_Profile drives the member and administrator endpoints.
*/
func TestHandler_Profile(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	alice, token := f.member(t, "alice")

	adminToken, err := f.tokens.IssueAccessToken(auth.IdentityOf(&auth.Admin{ID: uuid.New(), Username: "root"}))
	require.NoError(t, err)

	read := do(t, router, http.MethodGet, "/users/profile", token, nil)
	require.Equal(t, http.StatusOK, read.Code)

	var profile respond.SuccessEnvelope[profileBody]
	require.NoError(t, json.NewDecoder(read.Body).Decode(&profile))
	assert.Equal(t, "alice", profile.Data.Username)
	assert.Equal(t, "USER", profile.Data.Role)

	updated := do(t, router, http.MethodPut, "/users/profile", token, map[string]string{"nickname": "Ali"})
	require.Equal(t, http.StatusOK, updated.Code)

	var message respond.SuccessEnvelope[struct {
		Message string      `json:"message"`
		Profile profileBody `json:"profile"`
	}]
	require.NoError(t, json.NewDecoder(updated.Body).Decode(&message))
	assert.Equal(t, account.MessageProfileUpdated, message.Data.Message)
	assert.Equal(t, "Ali", message.Data.Profile.Nickname)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   any
		want   int
	}{
		{name: "anonymous", method: http.MethodGet, target: "/users/profile", want: http.StatusUnauthorized},
		{name: "member_on_admin_route", method: http.MethodDelete, target: "/admins/users/" + alice.ID, token: token, want: http.StatusForbidden},
		{name: "introduction_for_member", method: http.MethodPut, target: "/users/profile", token: token, body: map[string]string{"introduction": "Coach"}, want: http.StatusBadRequest},
		{name: "admin_edit", method: http.MethodPut, target: "/admins/users/" + alice.ID + "/profile", token: adminToken, body: map[string]string{"nickname": "Moderated"}, want: http.StatusOK},
		{name: "invalid_id", method: http.MethodDelete, target: "/admins/users/nope", token: adminToken, want: http.StatusBadRequest},
		{name: "admin_delete", method: http.MethodDelete, target: "/admins/users/" + alice.ID, token: adminToken, want: http.StatusOK},
		{name: "admin_delete_again", method: http.MethodDelete, target: "/admins/users/" + alice.ID, token: adminToken, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := do(t, router, tt.method, tt.target, tt.token, tt.body)
			assert.Equal(t, tt.want, recorder.Code)
		})
	}
}
