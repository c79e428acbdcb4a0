// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/fitclub/internal/platform/middleware"
	requestutil "github.com/taibuivan/fitclub/internal/platform/request"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/internal/users/auth"
)

// Status messages surfaced by the account endpoints.
const (
	MessageProfileUpdated = "Profile updated"
	MessageUserRemoved    = "User account removed"
)

// Handler implements the HTTP layer for profile management.
type Handler struct {
	accountService *Service
	authenticate   func(http.Handler) http.Handler
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service, authenticate func(http.Handler) http.Handler) *Handler {
	return &Handler{accountService: service, authenticate: authenticate}
}

// UserRoutes registers the member endpoints on router.
//
// # Endpoints
//   - GET /profile : Reads the caller's profile.
//   - PUT /profile : Updates nickname or introduction.
func (handler *Handler) UserRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(handler.authenticate, middleware.RequireKind(string(auth.KindUser)))

		r.Get("/profile", handler.getProfile)
		r.Put("/profile", handler.updateProfile)
	})
}

// AdminRoutes registers the administrator endpoints on router.
//
// # Endpoints
//   - PUT    /users/{id}/profile : Edits a member's profile.
//   - DELETE /users/{id}         : Removes a member account.
func (handler *Handler) AdminRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(handler.authenticate, middleware.RequireKind(string(auth.KindAdmin)))

		r.Put("/users/{id}/profile", handler.updateUserProfile)
		r.Delete("/users/{id}", handler.deleteUser)
	})
}

// # Payloads

type updateProfileRequest struct {
	Nickname     *string `json:"nickname"`
	Introduction *string `json:"introduction"`
}

type profileResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	Role         string    `json:"role"`
	Introduction string    `json:"introduction,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type profileMessageResponse struct {
	Message string          `json:"message"`
	Profile profileResponse `json:"profile"`
}

func toProfile(user *auth.User) profileResponse {
	return profileResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Nickname:     user.Nickname,
		Role:         string(user.Role),
		Introduction: user.Introduction,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

// # Member Endpoints

/*
GET /api/v1/users/profile.

Response:
  - 200: profileResponse
  - 401: Authentication required
*/
func (handler *Handler) getProfile(writer http.ResponseWriter, request *http.Request) {
	subject, err := requestutil.RequiredSubject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.GetProfile(request.Context(), subject)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, toProfile(user))
}

/*
PUT /api/v1/users/profile.

Request:
  - body: updateProfileRequest (absent fields are unchanged)

Response:
  - 200: profileMessageResponse
  - 400: VALIDATION_ERROR, or NOT_TRAINER for an introduction without trainer status
*/
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	subject, err := requestutil.RequiredSubject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.applyUpdate(writer, request, subject)
}

// # Administrator Endpoints

func (handler *Handler) updateUserProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.PathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.applyUpdate(writer, request, userID)
}

// deleteUser answers 404 when the member does not exist.
func (handler *Handler) deleteUser(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.PathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.DeleteUser(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Text(writer, MessageUserRemoved)
}

// # Helpers

func (handler *Handler) applyUpdate(writer http.ResponseWriter, request *http.Request, userID string) {
	var input updateProfileRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accountService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		Nickname:     input.Nickname,
		Introduction: input.Introduction,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profileMessageResponse{Message: MessageProfileUpdated, Profile: toProfile(user)})
}

