package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk/internal/platform/db"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// Service answers role questions for principals.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// HasRole reports whether principal holds role. A nil principal or an unknown
// role is simply false. Store failures are wrapped with shared.ErrTransient.
func (s *Service) HasRole(ctx context.Context, principal *Principal, role Role) (bool, error) {
	if principal == nil || principal.ID == uuid.Nil || !role.Valid() {
		return false, nil
	}
	ok, err := s.repo.HasRole(ctx, principal.ID, role)
	if err != nil {
		return false, shared.Transient("rbac: has role", err)
	}
	return ok, nil
}

// Require returns nil when principal holds role, ErrUnauthorized when there is
// no principal and ErrForbidden when the role is missing.
func (s *Service) Require(ctx context.Context, principal *Principal, role Role) error {
	if principal == nil {
		return shared.ErrUnauthorized
	}
	ok, err := s.HasRole(ctx, principal, role)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rbac: %s required: %w", role, shared.ErrForbidden)
	}
	return nil
}

// Roles lists the valid roles held by userID.
func (s *Service) Roles(ctx context.Context, userID uuid.UUID) ([]Role, error) {
	assignments, err := s.repo.ListAssignments(ctx, userID)
	if err != nil {
		return nil, shared.Transient("rbac: list roles", err)
	}
	roles := make([]Role, 0, len(assignments))
	for _, a := range assignments {
		if a.Role.Valid() {
			roles = append(roles, a.Role)
		}
	}
	return roles, nil
}

// Assign grants role to userID through q.
func (s *Service) Assign(ctx context.Context, q db.DBTX, userID uuid.UUID, role Role) error {
	if !role.Valid() {
		return shared.NewValidationError(map[string]string{"role": "must be one of: facilities_admin, registrar_admin, accounting_admin"})
	}
	if err := s.repo.Assign(ctx, q, userID, role); err != nil {
		return fmt.Errorf("rbac: assign %s: %w", role, err)
	}
	return nil
}
