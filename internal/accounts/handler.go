package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumina-lms/lumina/internal/platform/httpx"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Handler manages account endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers authenticated account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/platform-access", h.togglePlatformAccess)
	})
}

// MountPublicRoutes registers the unauthenticated onboarding and recovery
// routes.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/sign-up", h.signUp)
	r.Post("/invitations/accept", h.acceptInvitation)
	r.Post("/recovery", h.requestSecurityCode)
	r.Post("/recovery/verify", h.verifySecurityCode)
	r.Post("/recovery/reset", h.resetPassword)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	list, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members_list": list})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	account, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) togglePlatformAccess(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	access, err := h.service.TogglePlatformAccess(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "toggle platform access", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"platform_access": access})
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.SignUp(r.Context(), req)
	if err != nil {
		h.fail(w, r, "sign up", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req AcceptInvitationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AcceptInvitation(r.Context(), req); err != nil {
		h.fail(w, r, "accept invitation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestSecurityCode(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RequestSecurityCode(r.Context(), req); err != nil {
		h.fail(w, r, "request security code", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) verifySecurityCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	token, err := h.service.VerifySecurityCode(r.Context(), req)
	if err != nil {
		h.fail(w, r, "verify security code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"recovery_token": token})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		h.fail(w, r, "reset password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
