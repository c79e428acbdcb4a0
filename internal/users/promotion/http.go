// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package promotion

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/fitclub/internal/platform/middleware"
	requestutil "github.com/taibuivan/fitclub/internal/platform/request"
	"github.com/taibuivan/fitclub/internal/platform/respond"
	"github.com/taibuivan/fitclub/internal/platform/validate"
	"github.com/taibuivan/fitclub/internal/users/auth"
	"github.com/taibuivan/fitclub/internal/users/role"
	"github.com/taibuivan/fitclub/pkg/pagination"
)

// Status messages surfaced by the promotion endpoints.
const (
	MessageRequested = "Promotion request submitted"
	MessageWithdrawn = "Promotion request withdrawn"
	MessageApproved  = "Promotion approved"
	MessageRejected  = "Promotion request rejected"
	MessageCancelled = "Trainer status cancelled"
	MessageReported  = "Account reported"
	MessageCleared   = "Report cleared"
	MessageLiked     = "Trainer liked"
	MessageUnliked   = "Trainer unliked"
)

// Handler implements the promotion, moderation and like endpoints.
type Handler struct {
	promotionService *Service
	authenticate     func(http.Handler) http.Handler
}

// NewHandler constructs a new [Handler]. authenticate must place verified claims in the context.
func NewHandler(service *Service, authenticate func(http.Handler) http.Handler) *Handler {
	return &Handler{promotionService: service, authenticate: authenticate}
}

// UserRoutes registers the member endpoints on router.
//
// # Endpoints
//   - POST   /promote             : Files a promotion request.
//   - DELETE /permission          : Withdraws the pending request.
//   - POST   /trainers/{id}/like  : Likes a trainer.
//   - DELETE /trainers/{id}/like  : Removes the like.
//   - GET    /my-trainers         : Pages liked trainers.
//   - GET    /trainers            : Pages trainers.
//   - GET    /trainers/{id}       : Fetches one trainer.
func (handler *Handler) UserRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(handler.authenticate, middleware.RequireKind(string(auth.KindUser)))

		r.With(middleware.RequireRole(string(role.User))).Post("/promote", handler.requestPromotion)
		r.Delete("/permission", handler.withdrawPromotion)

		r.Post("/trainers/{id}/like", handler.likeTrainer)
		r.Delete("/trainers/{id}/like", handler.unlikeTrainer)
		r.Get("/my-trainers", handler.listLikedTrainers)

		r.Get("/trainers", handler.listByRole(role.Trainer))
		r.Get("/trainers/{id}", handler.findAccount(handler.promotionService.FindTrainer))
	})
}

// AdminRoutes registers the administrator endpoints on router.
//
// # Endpoints
//   - GET    /registrations               : Pages pending requests.
//   - PUT    /registrations/{id}/permit   : Approves a request.
//   - DELETE /registrations/{id}          : Rejects a request.
//   - DELETE /trainers/{id}/permission    : Cancels trainer status.
//   - PUT    /users/{id}/report           : Reports an account.
//   - DELETE /users/{id}/report           : Clears a report.
//   - GET    /users, /trainers            : Pages accounts by role.
//   - GET    /users/{id}, /trainers/{id}  : Fetches one account.
func (handler *Handler) AdminRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(handler.authenticate, middleware.RequireKind(string(auth.KindAdmin)))

		r.Get("/registrations", handler.listPending)
		r.Put("/registrations/{id}/permit", handler.approvePromotion)
		r.Delete("/registrations/{id}", handler.rejectPromotion)

		r.Delete("/trainers/{id}/permission", handler.cancelTrainer)
		r.Put("/users/{id}/report", handler.reportUser)
		r.Delete("/users/{id}/report", handler.clearReport)

		r.Get("/users", handler.listByRole(role.User, role.Reported))
		r.Get("/trainers", handler.listByRole(role.Trainer, role.ReportedTrainer))
		r.Get("/users/{id}", handler.findAccount(handler.promotionService.FindUser))
		r.Get("/trainers/{id}", handler.findAccount(handler.promotionService.FindTrainer))
	})
}

// # Payloads

type promotionRequest struct {
	Introduction string `json:"introduction"`
}

type requestResponse struct {
	Message string   `json:"message,omitempty"`
	Request *Request `json:"request"`
}

type memberResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	Role         string    `json:"role"`
	Introduction string    `json:"introduction,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type memberMessageResponse struct {
	Message string         `json:"message"`
	Member  memberResponse `json:"member"`
}

func toMember(user *auth.User) memberResponse {
	return memberResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Nickname:     user.Nickname,
		Role:         string(user.Role),
		Introduction: user.Introduction,
		CreatedAt:    user.CreatedAt,
	}
}

// # Member Handlers

/*
requestPromotion files a trainer candidacy for the caller.

POST /api/v1/users/promote

Response:
  - 201: requestResponse
  - 409: DUPLICATE_REQUEST
*/
func (handler *Handler) requestPromotion(writer http.ResponseWriter, request *http.Request) {
	subject, err := requestutil.RequiredSubject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input promotionRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	created, err := handler.promotionService.RequestPromotion(request.Context(), subject, input.Introduction)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, requestResponse{Message: MessageRequested, Request: created})
}

func (handler *Handler) withdrawPromotion(writer http.ResponseWriter, request *http.Request) {
	subject, err := requestutil.RequiredSubject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.promotionService.WithdrawPromotion(request.Context(), subject); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Text(writer, MessageWithdrawn)
}

func (handler *Handler) likeTrainer(writer http.ResponseWriter, request *http.Request) {
	handler.withSubjectAndTarget(writer, request, func(subject, target string) error {
		return handler.promotionService.LikeTrainer(request.Context(), subject, target)
	}, MessageLiked)
}

func (handler *Handler) unlikeTrainer(writer http.ResponseWriter, request *http.Request) {
	handler.withSubjectAndTarget(writer, request, func(subject, target string) error {
		return handler.promotionService.UnlikeTrainer(request.Context(), subject, target)
	}, MessageUnliked)
}

func (handler *Handler) withSubjectAndTarget(writer http.ResponseWriter, request *http.Request, action func(subject, target string) error, message string) {
	subject, err := requestutil.RequiredSubject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	target, err := requestutil.PathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := action(subject, target); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Text(writer, message)
}

// listLikedTrainers pages the caller's liked trainers. GET /api/v1/users/my-trainers
func (handler *Handler) listLikedTrainers(writer http.ResponseWriter, request *http.Request) {
	subject, err := requestutil.RequiredSubject(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	page, err := handler.promotionService.ListLikedTrainers(request.Context(), subject, pagination.FromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Page(writer, page, toMember)
}

// # Administrator Handlers

/*
listPending pages the pending promotion requests.

GET /api/v1/admins/registrations?page=1&limit=20&sort=asc

Response:
  - 200: Paginated []Request
  - 404: EMPTY_PAGE past the last page
*/
func (handler *Handler) listPending(writer http.ResponseWriter, request *http.Request) {
	page, err := handler.promotionService.ListPending(request.Context(), pagination.FromRequest(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, page.Items, page.Meta)
}

/*
approvePromotion makes the requester a trainer.

PUT /api/v1/admins/registrations/{id}/permit

Response:
  - 200: memberMessageResponse
  - 404: Request already decided or never existed
*/
func (handler *Handler) approvePromotion(writer http.ResponseWriter, request *http.Request) {
	requestID, err := requestutil.PathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.promotionService.ApprovePromotion(request.Context(), requestID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, memberMessageResponse{Message: MessageApproved, Member: toMember(user)})
}

func (handler *Handler) rejectPromotion(writer http.ResponseWriter, request *http.Request) {
	requestID, err := requestutil.PathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.promotionService.RejectPromotion(request.Context(), requestID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Text(writer, MessageRejected)
}

// cancelTrainer answers 400 NOT_TRAINER for members that are not trainers.
func (handler *Handler) cancelTrainer(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.PathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.promotionService.CancelTrainer(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Text(writer, MessageCancelled)
}

func (handler *Handler) reportUser(writer http.ResponseWriter, request *http.Request) {
	handler.moderate(writer, request, handler.promotionService.ReportUser, MessageReported)
}

func (handler *Handler) clearReport(writer http.ResponseWriter, request *http.Request) {
	handler.moderate(writer, request, handler.promotionService.ClearReport, MessageCleared)
}

func (handler *Handler) moderate(
	writer http.ResponseWriter,
	request *http.Request,
	action func(ctx context.Context, userID string) (*auth.User, error),
	message string,
) {
	userID, err := requestutil.PathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := action(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, memberMessageResponse{Message: message, Member: toMember(user)})
}

// listByRole pages accounts holding one of the given roles; the first is the default.
//
// The optional "role" query parameter picks among them.
func (handler *Handler) listByRole(defaultRole role.Role, others ...role.Role) http.HandlerFunc {
	allowed := append([]string{string(defaultRole)}, rolesAsStrings(others)...)

	return func(writer http.ResponseWriter, request *http.Request) {
		selected := defaultRole
		if raw := request.URL.Query().Get("role"); raw != "" {
			validator := &validate.Validator{}
			if err := validator.OneOf(FieldRole, raw, allowed...).Err(); err != nil {
				respond.Error(writer, request, err)
				return
			}
			selected = role.Role(raw)
		}

		page, err := handler.promotionService.ListUsersByRole(request.Context(), selected, pagination.FromRequest(request))
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.Page(writer, page, toMember)
	}
}

func (handler *Handler) findAccount(find func(ctx context.Context, id string) (*auth.User, error)) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		id, err := requestutil.PathID(request)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		user, err := find(request.Context(), id)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, toMember(user))
	}
}

// # Helpers

func rolesAsStrings(roles []role.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
