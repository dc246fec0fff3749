package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumina-lms/lumina/internal/accounts"
	"github.com/lumina-lms/lumina/internal/auth"
	"github.com/lumina-lms/lumina/internal/courses"
	"github.com/lumina-lms/lumina/internal/lessons"
	"github.com/lumina-lms/lumina/internal/observability"
	"github.com/lumina-lms/lumina/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	TokenManager    *auth.TokenManager
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	CoursesHandler  *courses.Handler
	LessonsHandler  *lessons.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Open endpoints: login, sign-up, invitations, recovery.
		r.Group(func(r chi.Router) {
			params.AuthHandler.MountPublicRoutes(r)
			params.AccountsHandler.MountPublicRoutes(r)
		})

		// Everything else requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(params.TokenManager))
			params.AuthHandler.MountRoutes(r)
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
			r.Route("/courses", func(r chi.Router) {
				params.CoursesHandler.MountRoutes(r)
				r.Route("/{slug}/lessons", params.LessonsHandler.MountRoutes)
			})
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
