package courses

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumina-lms/lumina/internal/platform/httpx"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Handler manages course endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers course routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{slug}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Put("/status", h.switchStatus)
		r.Post("/subscribe", h.subscribe)
		r.Post("/members/{userID}", h.grantAccess)
		r.Put("/members/{userID}", h.setAccess)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	list, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, "list courses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"courses_list": list})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req CreateCourseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	course, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, "create course", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, course)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	course, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, "get course", err)
		return
	}
	httpx.JSON(w, http.StatusOK, course)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req UpdateCourseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	course, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "slug"), req)
	if err != nil {
		h.fail(w, r, "update course", err)
		return
	}
	httpx.JSON(w, http.StatusOK, course)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "slug")); err != nil {
		h.fail(w, r, "delete course", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) switchStatus(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	state, err := h.service.SwitchStatus(r.Context(), actor, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, "switch course status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"is_active": state})
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.Subscribe(r.Context(), actor, chi.URLParam(r, "slug")); err != nil {
		h.fail(w, r, "subscribe", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantAccess(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	if err := h.service.GrantAccess(r.Context(), actor, chi.URLParam(r, "slug"), userID); err != nil {
		h.fail(w, r, "grant access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setAccess(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req GrantAccessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.SetAccess(r.Context(), actor, chi.URLParam(r, "slug"), userID, req); err != nil {
		h.fail(w, r, "set access", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
