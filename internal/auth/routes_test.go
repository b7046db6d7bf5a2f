package auth_test

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusdesk/campusdesk/internal/auth"
)

func chiRouter(h *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}
