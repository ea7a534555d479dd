package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AceBNeato/sdmdweb-sub001/internal/auth"
	"github.com/AceBNeato/sdmdweb-sub001/internal/elevation"
	"github.com/AceBNeato/sdmdweb-sub001/internal/observability"
	"github.com/AceBNeato/sdmdweb-sub001/internal/rbac"
	"github.com/AceBNeato/sdmdweb-sub001/internal/roles"
	"github.com/AceBNeato/sdmdweb-sub001/internal/shared"
	"github.com/AceBNeato/sdmdweb-sub001/internal/users"
	"github.com/AceBNeato/sdmdweb-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	RolesHandler     *roles.Handler
	UsersHandler     *users.Handler
	ElevationHandler *elevation.Handler
	JobHandler       *jobs.Handler
	Pool             *pgxpool.Pool
	RBACMiddleware   rbac.Middleware
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
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
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}

	if params.UsersHandler != nil {
		r.Route("/users", func(sr chi.Router) {
			params.UsersHandler.MountRoutes(sr)
		})
	}

	if params.RolesHandler != nil {
		r.Route("/roles", func(sr chi.Router) {
			params.RolesHandler.MountRoutes(sr)
		})
	}

	if params.ElevationHandler != nil {
		r.Group(func(sr chi.Router) {
			sr.Use(params.RBACMiddleware.RequireAny(shared.PermElevationsView, shared.PermElevationsGrant))
			params.ElevationHandler.MountRoutes(sr)
		})
	}

	if params.JobHandler != nil {
		r.Route("/jobs", func(sr chi.Router) {
			sr.Use(params.RBACMiddleware.RequireAny(shared.PermReportsView))
			params.JobHandler.MountRoutes(sr)
		})
	}

	return r
}
