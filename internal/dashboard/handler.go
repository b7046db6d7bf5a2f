package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/requests"
	"github.com/campusdesk/campusdesk/internal/rooms"
	"github.com/campusdesk/campusdesk/internal/shared"
	"github.com/campusdesk/campusdesk/internal/view"
)

// RoomSource lists rooms.
type RoomSource interface {
	ListRooms(ctx context.Context) ([]rooms.Room, error)
}

// RequestSource lists requests and counts pending ones.
type RequestSource interface {
	ListRequests(ctx context.Context) ([]requests.RoomRequest, error)
	CountPending(ctx context.Context) (int, error)
}

// Navigator resolves where a visitor to the landing page belongs.
type Navigator interface {
	CurrentPrincipal(ctx context.Context, sess *shared.Session) (*rbac.Principal, error)
	DefaultDashboard(ctx context.Context, principal *rbac.Principal) (string, bool, error)
}

// Handler renders the landing page and the role dashboards.
type Handler struct {
	logger    *slog.Logger
	rooms     RoomSource
	requests  RequestSource
	nav       Navigator
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, rooms RoomSource, requests RequestSource, nav Navigator, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, rooms: rooms, requests: requests, nav: nav, templates: templates, csrf: csrf}
}

// MISData is the facilities dashboard view model.
type MISData struct {
	Stats        Stats
	Rooms        []rooms.Room
	Requests     []requests.RoomRequest
	RoomTypes    []rooms.RoomType
	RoomStatuses []rooms.Status
	Tab          string
	LoadFailed   bool
}

// Stats feeds the four stat cards.
type Stats struct {
	TotalRooms      int
	AvailableRooms  int
	PendingRequests int
	OccupiedRooms   int
}

// PortalData is the placeholder portal view model.
type PortalData struct {
	Role     rbac.Role
	Heading  string
	Features []string
}

var registrarFeatures = []string{
	"Student records management",
	"Course enrollment",
	"Grade management",
	"Transcript requests",
	"Academic calendar",
}

var accountingFeatures = []string{
	"Tuition fee management",
	"Payment processing",
	"Financial reports",
	"Scholarship management",
	"Budget tracking",
}

// MountLanding registers the landing page.
func (h *Handler) MountLanding(r chi.Router) {
	r.Get("/", h.landing)
}

// MIS renders the facilities dashboard. Callers mount it behind the role guard.
func (h *Handler) MIS(w http.ResponseWriter, r *http.Request) {
	data, err := h.loadMIS(r.Context())
	if err != nil {
		h.logger.Error("load mis dashboard", slog.Any("error", err))
		shared.NotifyErr(shared.SessionFromContext(r.Context()), err)
		data.LoadFailed = true
	}
	data.Tab = r.URL.Query().Get("tab")
	if data.Tab != "requests" {
		data.Tab = "map"
	}
	h.render(w, r, "pages/mis_dashboard.html", "MIS Dashboard", data)
}

// Registrar renders the registrar portal.
func (h *Handler) Registrar(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/portal.html", "Registrar Dashboard", PortalData{Role: rbac.RoleRegistrar, Heading: "Registrar Portal", Features: registrarFeatures})
}

// Accounting renders the accounting portal.
func (h *Handler) Accounting(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/portal.html", "Accounting Dashboard", PortalData{Role: rbac.RoleAccounting, Heading: "Accounting Portal", Features: accountingFeatures})
}

// loadMIS fetches rooms, requests and the pending count in parallel. Any
// failure discards the whole snapshot.
func (h *Handler) loadMIS(ctx context.Context) (MISData, error) {
	data := MISData{RoomTypes: rooms.RoomTypes, RoomStatuses: rooms.Statuses}
	var (
		roomList []rooms.Room
		reqList  []requests.RoomRequest
		pending  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roomList, err = h.rooms.ListRooms(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		reqList, err = h.requests.ListRequests(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = h.requests.CountPending(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return data, err
	}
	counts := rooms.Stats(roomList)
	data.Rooms = roomList
	data.Requests = reqList
	data.Stats = Stats{
		TotalRooms:      counts.Total,
		AvailableRooms:  counts.Available,
		PendingRequests: pending,
		OccupiedRooms:   counts.Occupied,
	}
	return data, nil
}

func (h *Handler) landing(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	principal, err := h.nav.CurrentPrincipal(r.Context(), sess)
	if err != nil {
		h.logger.Warn("landing principal", slog.Any("error", err))
	}
	if principal != nil {
		path, ok, err := h.nav.DefaultDashboard(r.Context(), principal)
		if err != nil {
			h.logger.Warn("landing dashboard", slog.Any("error", err))
		}
		if ok {
			http.Redirect(w, r, path, http.StatusSeeOther)
			return
		}
	}
	h.render(w, r, "pages/landing.html", "Campus Desk", nil)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flashes:     sess.PopFlashes(),
		CurrentPath: r.URL.Path,
		Principal:   rbac.PrincipalFromContext(r.Context()),
		Data:        data,
	}
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", template))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
