package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// Authorizer checks a principal's role at the data boundary.
type Authorizer interface {
	Require(ctx context.Context, principal *rbac.Principal, role rbac.Role) error
}

// AuditRecorder stores audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the room directory.
type Service struct {
	repo     Repository
	authz    Authorizer
	audit    AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, authz Authorizer, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, audit: audit, logger: logger, validate: shared.NewValidator()}
}

// ListRooms returns a fresh snapshot of every room ordered by name.
func (s *Service) ListRooms(ctx context.Context) ([]Room, error) {
	rooms, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Transient("rooms: list", err)
	}
	return rooms, nil
}

// CreateRoom validates in and stores a new available room. Invalid input never
// reaches the store.
func (s *Service) CreateRoom(ctx context.Context, actor *rbac.Principal, in CreateRoomInput) (Room, error) {
	if err := s.authz.Require(ctx, actor, rbac.RoleFacilities); err != nil {
		return Room{}, err
	}
	in.Name = shared.SanitizeText(in.Name)
	in.Department = shared.SanitizeText(in.Department)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Room{}, err
	}
	room, err := s.repo.Insert(ctx, Room{
		Name:       in.Name,
		RoomType:   RoomType(in.RoomType),
		Capacity:   in.Capacity,
		Department: in.Department,
		Status:     StatusAvailable,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
	})
	if err != nil {
		return Room{}, shared.Transient("rooms: insert", err)
	}
	s.record(ctx, actor, "room.create", room.ID, map[string]any{"name": room.Name, "room_type": room.RoomType})
	return room, nil
}

// SetRoomStatus changes the operator-set status of a room. Request approvals
// never call this.
func (s *Service) SetRoomStatus(ctx context.Context, actor *rbac.Principal, id uuid.UUID, status Status) (Room, error) {
	if err := s.authz.Require(ctx, actor, rbac.RoleFacilities); err != nil {
		return Room{}, err
	}
	if !status.Valid() {
		return Room{}, shared.NewValidationError(map[string]string{"status": "must be one of: available, pending, occupied"})
	}
	room, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Room{}, fmt.Errorf("rooms: %s: %w", id, shared.ErrNotFound)
		}
		return Room{}, shared.Transient("rooms: update status", err)
	}
	s.record(ctx, actor, "room.status", room.ID, map[string]any{"status": room.Status})
	return room, nil
}

func (s *Service) record(ctx context.Context, actor *rbac.Principal, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "room", EntityID: id.String(), Meta: meta}); err != nil {
		s.logger.Warn("audit room", slog.Any("error", err), slog.String("action", action))
	}
}
