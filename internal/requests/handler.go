package requests

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk/internal/platform/httpx"
	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/rooms"
	"github.com/campusdesk/campusdesk/internal/shared"
	"github.com/campusdesk/campusdesk/internal/view"
)

// RoomLister supplies the room choices of the request form.
type RoomLister interface {
	ListRooms(ctx context.Context) ([]rooms.Room, error)
}

// Handler serves request decisions for operators and the public intake.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rooms     RoomLister
	templates *view.Engine
	csrf      *shared.CSRFManager
	returnTo  string
}

// NewHandler constructs a Handler. returnTo is the dashboard redirected to after a decision.
func NewHandler(logger *slog.Logger, service *Service, rooms RoomLister, templates *view.Engine, csrf *shared.CSRFManager, returnTo string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rooms: rooms, templates: templates, csrf: csrf, returnTo: returnTo}
}

// MountDecisionRoutes registers approve/decline. Callers mount it behind the role guard.
func (h *Handler) MountDecisionRoutes(r chi.Router) {
	r.Post("/{id}/approve", h.decide(StatusApproved))
	r.Post("/{id}/decline", h.decide(StatusDeclined))
}

// MountPublicRoutes registers the HTML request form.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/new", h.showForm)
	r.Post("/", h.submitForm)
}

// MountAPIRoutes registers the JSON intake.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Post("/", h.submitJSON)
}

func (h *Handler) decide(status Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			h.redirect(w, r, sess, shared.NotifyError, shared.UserMessage(shared.ErrNotFound))
			return
		}
		req, err := h.service.SetRequestStatus(r.Context(), rbac.PrincipalFromContext(r.Context()), id, status)
		if err != nil {
			if !isExpected(err) {
				h.logger.Error("set request status", slog.Any("error", err), slog.String("request_id", id.String()))
			}
			h.redirect(w, r, sess, shared.NotifyError, shared.UserMessage(err))
			return
		}
		h.redirect(w, r, sess, shared.NotifySuccess, "Request "+string(req.Status)+" successfully")
	}
}

type formPageData struct {
	Rooms          []rooms.Room
	Form           CreateRequestInput
	Errors         map[string]string
	IdempotencyKey string
	Submitted      *RoomRequest
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, formPageData{}, http.StatusOK)
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	in := CreateRequestInput{
		RoomID:             r.PostFormValue("room_id"),
		RequesterName:      r.PostFormValue("requester_name"),
		RequesterEmail:     r.PostFormValue("requester_email"),
		RequestedDate:      r.PostFormValue("requested_date"),
		RequestedTimeStart: r.PostFormValue("requested_time_start"),
		RequestedTimeEnd:   r.PostFormValue("requested_time_end"),
		Purpose:            r.PostFormValue("purpose"),
		IdempotencyKey:     r.PostFormValue("idempotency_key"),
	}
	req, err := h.service.CreateRequest(r.Context(), in)
	if err != nil {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, shared.ErrValidation):
		case errors.Is(err, shared.ErrConflict):
			status = http.StatusConflict
			shared.NotifyErr(sess, err)
		default:
			h.logger.Error("create request", slog.Any("error", err))
			status = http.StatusServiceUnavailable
			shared.NotifyErr(sess, err)
		}
		h.renderForm(w, r, formPageData{Form: in, Errors: shared.FieldErrors(err)}, status)
		return
	}
	shared.Notify(sess, shared.NotifySuccess, "Your request for "+req.RoomName+" has been submitted")
	http.Redirect(w, r, "/requests/new", http.StatusSeeOther)
}

func (h *Handler) submitJSON(w http.ResponseWriter, r *http.Request) {
	var in CreateRequestInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
		return
	}
	in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	req, err := h.service.CreateRequest(r.Context(), in)
	if err != nil {
		if !isExpected(err) {
			h.logger.Error("create request", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Location", "/api/room-requests/"+req.ID.String())
	httpx.JSON(w, http.StatusCreated, req)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, data formPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	list, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		h.logger.Error("list rooms for form", slog.Any("error", err))
		shared.NotifyErr(sess, err)
	}
	data.Rooms = list
	data.IdempotencyKey = uuid.NewString()
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/request_form.html", view.TemplateData{
		Title:       "Request a room",
		CSRFToken:   csrfToken,
		Flashes:     sess.PopFlashes(),
		CurrentPath: r.URL.Path,
		Data:        data,
	}); err != nil {
		h.logger.Error("render request form", slog.Any("error", err))
	}
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, sess *shared.Session, kind, message string) {
	shared.Notify(sess, kind, message)
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", h.returnTo)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, h.returnTo, http.StatusSeeOther)
}

func isExpected(err error) bool {
	for _, target := range []error{shared.ErrValidation, shared.ErrConflict, shared.ErrNotFound, shared.ErrForbidden, shared.ErrUnauthorized} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
