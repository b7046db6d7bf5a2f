package rooms

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// Handler serves the room forms posted from the MIS dashboard.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	returnTo string
}

// NewHandler constructs a Handler. returnTo is the page redirected to after each post.
func NewHandler(logger *slog.Logger, service *Service, returnTo string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, returnTo: returnTo}
}

// MountRoutes registers room routes. Callers mount it behind the role guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createRoom)
	r.Post("/{id}/status", h.setStatus)
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in, fieldErrs := parseCreateForm(r)
	if len(fieldErrs) > 0 {
		h.redirectWithFlash(w, r, shared.NotifyError, shared.UserMessage(shared.NewValidationError(fieldErrs)))
		return
	}
	room, err := h.service.CreateRoom(r.Context(), rbac.PrincipalFromContext(r.Context()), in)
	if err != nil {
		h.fail(w, r, "create room", err)
		return
	}
	h.redirectWithFlash(w, r, shared.NotifySuccess, "Room "+room.Name+" added")
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.redirectWithFlash(w, r, shared.NotifyError, shared.UserMessage(shared.ErrNotFound))
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	room, err := h.service.SetRoomStatus(r.Context(), rbac.PrincipalFromContext(r.Context()), id, Status(r.PostFormValue("status")))
	if err != nil {
		h.fail(w, r, "set room status", err)
		return
	}
	h.redirectWithFlash(w, r, shared.NotifySuccess, "Room "+room.Name+" marked "+string(room.Status))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	h.redirectWithFlash(w, r, shared.NotifyError, shared.UserMessage(err))
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	shared.Notify(shared.SessionFromContext(r.Context()), kind, message)
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", h.returnTo)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, h.returnTo, http.StatusSeeOther)
}

func parseCreateForm(r *http.Request) (CreateRoomInput, map[string]string) {
	errs := map[string]string{}
	in := CreateRoomInput{
		Name:       r.PostFormValue("name"),
		RoomType:   r.PostFormValue("room_type"),
		Department: r.PostFormValue("department"),
	}
	if raw := strings.TrimSpace(r.PostFormValue("capacity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs["capacity"] = "must be a whole number"
		}
		in.Capacity = n
	}
	in.Latitude = parseCoord(r.PostFormValue("latitude"), "latitude", errs)
	in.Longitude = parseCoord(r.PostFormValue("longitude"), "longitude", errs)
	return in, errs
}

func parseCoord(raw, field string, errs map[string]string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		errs[field] = "must be a number"
		return nil
	}
	return &v
}
