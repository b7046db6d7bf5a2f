package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/campusdesk/campusdesk/internal/auth"
	"github.com/campusdesk/campusdesk/internal/dashboard"
	"github.com/campusdesk/campusdesk/internal/observability"
	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/requests"
	"github.com/campusdesk/campusdesk/internal/rooms"
	"github.com/campusdesk/campusdesk/internal/shared"
	"github.com/campusdesk/campusdesk/jobs"
	"github.com/campusdesk/campusdesk/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	RoomsHandler     *rooms.Handler
	RequestsHandler  *requests.Handler
	RBACMiddleware   rbac.Middleware
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with campusdesk defaults.
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

	params.DashboardHandler.MountLanding(r)
	r.Route("/auth", params.AuthHandler.MountRoutes)

	guard := params.RBACMiddleware
	r.Route(rbac.RoleFacilities.DashboardPath(), func(r chi.Router) {
		r.Use(guard.RequireRole(rbac.RoleFacilities))
		r.Get("/", params.DashboardHandler.MIS)
		r.Route("/rooms", params.RoomsHandler.MountRoutes)
		r.Route("/requests", params.RequestsHandler.MountDecisionRoutes)
	})
	r.Route(rbac.RoleRegistrar.DashboardPath(), func(r chi.Router) {
		r.Use(guard.RequireRole(rbac.RoleRegistrar))
		r.Get("/", params.DashboardHandler.Registrar)
	})
	r.Route(rbac.RoleAccounting.DashboardPath(), func(r chi.Router) {
		r.Use(guard.RequireRole(rbac.RoleAccounting))
		r.Get("/", params.DashboardHandler.Accounting)
	})

	r.Route("/requests", params.RequestsHandler.MountPublicRoutes)
	r.Route("/api/room-requests", params.RequestsHandler.MountAPIRoutes)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
