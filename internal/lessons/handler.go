package lessons

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumina-lms/lumina/internal/platform/httpx"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Handler manages lesson endpoints. Mounted under /courses/{slug}/lessons.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers lesson routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{lessonID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/materials", h.listMaterials)
		r.Post("/materials", h.addMaterial)
		r.Delete("/materials/{materialID}", h.removeMaterial)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	list, err := h.service.List(r.Context(), actor, chi.URLParam(r, "slug"))
	if err != nil {
		h.fail(w, r, "list lessons", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lessons_list": list})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req CreateLessonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lesson, err := h.service.Create(r.Context(), actor, chi.URLParam(r, "slug"), req)
	if err != nil {
		h.fail(w, r, "create lesson", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lesson)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	lessonID, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	lesson, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "slug"), lessonID)
	if err != nil {
		h.fail(w, r, "get lesson", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lesson)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	lessonID, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	var req UpdateLessonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lesson, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "slug"), lessonID, req)
	if err != nil {
		h.fail(w, r, "update lesson", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lesson)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	lessonID, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "slug"), lessonID); err != nil {
		h.fail(w, r, "delete lesson", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	lessonID, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListMaterials(r.Context(), actor, chi.URLParam(r, "slug"), lessonID)
	if err != nil {
		h.fail(w, r, "list materials", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"materials_list": list})
}

func (h *Handler) addMaterial(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	lessonID, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	var req AddMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	material, err := h.service.AddMaterial(r.Context(), actor, chi.URLParam(r, "slug"), lessonID, req)
	if err != nil {
		h.fail(w, r, "add material", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, material)
}

func (h *Handler) removeMaterial(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	lessonID, ok := h.lessonID(w, r)
	if !ok {
		return
	}
	materialID, err := strconv.ParseInt(chi.URLParam(r, "materialID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid material id")
		return
	}
	if err := h.service.RemoveMaterial(r.Context(), actor, chi.URLParam(r, "slug"), lessonID, materialID); err != nil {
		h.fail(w, r, "remove material", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lessonID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "lessonID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid lesson id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
