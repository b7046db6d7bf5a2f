package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// Authorizer checks a principal's role at the data boundary.
type Authorizer interface {
	Require(ctx context.Context, principal *rbac.Principal, role rbac.Role) error
}

// DecisionNotifier tells the requester about a decision.
type DecisionNotifier interface {
	NotifyDecision(ctx context.Context, req RoomRequest) error
}

// TransitionObserver counts applied transitions.
type TransitionObserver interface {
	ObserveTransition(status string)
}

// Service is the request lifecycle manager and the only writer of request status.
type Service struct {
	repo     Repository
	authz    Authorizer
	notifier DecisionNotifier
	observer TransitionObserver
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a Service. notifier and observer may be nil.
func NewService(repo Repository, authz Authorizer, notifier DecisionNotifier, observer TransitionObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		authz:    authz,
		notifier: notifier,
		observer: observer,
		logger:   logger,
		validate: shared.NewValidator(),
	}
}

// ListRequests returns every request newest first with its room name.
func (s *Service) ListRequests(ctx context.Context) ([]RoomRequest, error) {
	reqs, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Transient("requests: list", err)
	}
	return reqs, nil
}

// CountPending returns the number of requests awaiting a decision.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	n, err := s.repo.CountByStatus(ctx, StatusPending)
	if err != nil {
		return 0, shared.Transient("requests: count pending", err)
	}
	return n, nil
}

// CreateRequest validates in and stores a pending request. Overlapping
// bookings for the same room are accepted; operators resolve them by hand.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (RoomRequest, error) {
	in = normalise(in)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return RoomRequest{}, err
	}
	if err := checkWindow(in.RequestedTimeStart, in.RequestedTimeEnd); err != nil {
		return RoomRequest{}, err
	}
	req, err := s.repo.Insert(ctx, RoomRequest{
		RoomID:             uuid.MustParse(in.RoomID),
		RequesterName:      in.RequesterName,
		RequesterEmail:     in.RequesterEmail,
		RequestedDate:      in.RequestedDate,
		RequestedTimeStart: in.RequestedTimeStart,
		RequestedTimeEnd:   in.RequestedTimeEnd,
		Purpose:            in.Purpose,
		Status:             StatusPending,
	}, in.IdempotencyKey)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrConflict) {
			return RoomRequest{}, err
		}
		return RoomRequest{}, shared.Transient("requests: insert", err)
	}
	return req, nil
}

// SetRequestStatus approves or declines a pending request on behalf of actor.
// A request that already left pending fails with shared.ErrConflict and keeps
// its status. The room's own status is not touched.
func (s *Service) SetRequestStatus(ctx context.Context, actor *rbac.Principal, id uuid.UUID, status Status) (RoomRequest, error) {
	if err := s.authz.Require(ctx, actor, rbac.RoleFacilities); err != nil {
		return RoomRequest{}, err
	}
	if !status.Decision() {
		return RoomRequest{}, shared.NewValidationError(map[string]string{"status": "must be one of: approved, declined"})
	}
	req, err := s.repo.Transition(ctx, Transition{ID: id, Status: status, ActorID: actor.ID})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			return RoomRequest{}, fmt.Errorf("requests: %s: %w", id, shared.ErrNotFound)
		case errors.Is(err, shared.ErrConflict):
			return RoomRequest{}, err
		}
		return RoomRequest{}, shared.Transient("requests: transition", err)
	}

	if s.observer != nil {
		s.observer.ObserveTransition(string(req.Status))
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyDecision(ctx, req); err != nil {
			s.logger.Warn("notify decision", slog.Any("error", err), slog.String("request_id", req.ID.String()))
		}
	}
	s.logger.Info("room request decided",
		slog.String("request_id", req.ID.String()),
		slog.String("status", string(req.Status)),
		slog.String("actor_id", actor.ID.String()))
	return req, nil
}

func normalise(in CreateRequestInput) CreateRequestInput {
	in.RoomID = strings.ToLower(strings.TrimSpace(in.RoomID))
	in.RequesterName = shared.SanitizeText(in.RequesterName)
	in.RequesterEmail = strings.ToLower(strings.TrimSpace(in.RequesterEmail))
	in.RequestedDate = strings.TrimSpace(in.RequestedDate)
	in.RequestedTimeStart = strings.TrimSpace(in.RequestedTimeStart)
	in.RequestedTimeEnd = strings.TrimSpace(in.RequestedTimeEnd)
	in.Purpose = shared.SanitizeText(in.Purpose)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	return in
}

func checkWindow(start, end string) error {
	from, err := time.Parse("15:04", start)
	if err != nil {
		return shared.NewValidationError(map[string]string{"requested_time_start": "must match format 15:04"})
	}
	to, err := time.Parse("15:04", end)
	if err != nil {
		return shared.NewValidationError(map[string]string{"requested_time_end": "must match format 15:04"})
	}
	if !to.After(from) {
		return shared.NewValidationError(map[string]string{"requested_time_end": "must be after the start time"})
	}
	return nil
}
