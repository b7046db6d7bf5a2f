package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
	"github.com/campusdesk/campusdesk/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		csrfManager: csrf,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Post("/logout", h.handleLogout)
}

type loginPageData struct {
	Form   LoginInput
	Errors map[string]string
}

type signupPageData struct {
	Form   SignUpInput
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if h.redirectSignedIn(w, r) {
		return
	}
	h.render(w, r, "pages/login.html", "Sign in", loginPageData{Form: LoginInput{Role: string(rbac.RoleFacilities)}}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := LoginInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
	}

	_, role, err := h.service.Login(r.Context(), sess, form, LoginMeta{IP: r.RemoteAddr, UserAgent: r.UserAgent()})
	if err == nil {
		shared.Notify(sess, shared.NotifySuccess, "Login successful!")
		http.Redirect(w, r, role.DashboardPath(), http.StatusSeeOther)
		return
	}

	form.Password = ""
	data := loginPageData{Form: form, Errors: shared.FieldErrors(err)}
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ErrRoleNotHeld):
		shared.Notify(sess, shared.NotifyError, RoleDeniedMessage)
		status = http.StatusForbidden
	case errors.Is(err, shared.ErrValidation):
	case errors.Is(err, shared.ErrInvalidCredentials):
		shared.NotifyErr(sess, err)
		status = http.StatusUnauthorized
	default:
		h.logger.Error("login", slog.Any("error", err))
		shared.NotifyErr(sess, err)
		status = http.StatusServiceUnavailable
	}
	h.render(w, r, "pages/login.html", "Sign in", data, status)
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	if h.redirectSignedIn(w, r) {
		return
	}
	h.render(w, r, "pages/signup.html", "Create account", signupPageData{Form: SignUpInput{Role: string(rbac.RoleFacilities)}}, http.StatusOK)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := SignUpInput{
		FullName: r.PostFormValue("full_name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
	}

	if _, err := h.service.SignUp(r.Context(), form); err != nil {
		form.Password = ""
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, shared.ErrValidation):
		case errors.Is(err, shared.ErrDuplicateAccount):
			shared.NotifyErr(sess, err)
			status = http.StatusConflict
		default:
			h.logger.Error("signup", slog.Any("error", err))
			shared.NotifyErr(sess, err)
			status = http.StatusServiceUnavailable
		}
		h.render(w, r, "pages/signup.html", "Create account", signupPageData{Form: form, Errors: shared.FieldErrors(err)}, status)
		return
	}

	shared.Notify(sess, shared.NotifySuccess, "Account created successfully! You can now login.")
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.SignOut(r.Context(), sess); err != nil {
		h.logger.Warn("sign out", slog.Any("error", err))
	}
	shared.Notify(sess, shared.NotifySuccess, "Logged out successfully")
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/auth/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// redirectSignedIn sends a signed-in visitor to their first dashboard.
func (h *Handler) redirectSignedIn(w http.ResponseWriter, r *http.Request) bool {
	sess := shared.SessionFromContext(r.Context())
	principal, err := h.service.CurrentPrincipal(r.Context(), sess)
	if err != nil {
		h.logger.Warn("resolve principal", slog.Any("error", err))
		return false
	}
	path, ok, err := h.service.DefaultDashboard(r.Context(), principal)
	if err != nil {
		h.logger.Warn("default dashboard", slog.Any("error", err))
		return false
	}
	if !ok {
		return false
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
	return true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flashes:     sess.PopFlashes(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
	}
}
