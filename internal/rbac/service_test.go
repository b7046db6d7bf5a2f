package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campusdesk/internal/platform/db"
	"github.com/campusdesk/campusdesk/internal/shared"
)

type stubRepo struct {
	roles    map[uuid.UUID][]Role
	err      error
	lookups  int
	assigned []Assignment
}

func (s *stubRepo) HasRole(_ context.Context, userID uuid.UUID, role Role) (bool, error) {
	s.lookups++
	if s.err != nil {
		return false, s.err
	}
	for _, r := range s.roles[userID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) ListAssignments(_ context.Context, userID uuid.UUID) ([]Assignment, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Assignment
	for _, r := range s.roles[userID] {
		out = append(out, Assignment{UserID: userID, Role: r})
	}
	return out, nil
}

func (s *stubRepo) Assign(_ context.Context, _ db.DBTX, userID uuid.UUID, role Role) error {
	s.assigned = append(s.assigned, Assignment{UserID: userID, Role: role})
	return s.err
}

func TestHasRoleNilPrincipalIsFalseWithoutLookup(t *testing.T) {
	repo := &stubRepo{}
	ok, err := NewService(repo).HasRole(context.Background(), nil, RoleFacilities)
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, repo.lookups)
}

func TestHasRoleUnknownRoleIsFalse(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{roles: map[uuid.UUID][]Role{id: {"superuser"}}}
	ok, err := NewService(repo).HasRole(context.Background(), &Principal{ID: id}, Role("superuser"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, repo.lookups)
}

func TestHasRoleMatchesOnlyHeldRole(t *testing.T) {
	id := uuid.New()
	svc := NewService(&stubRepo{roles: map[uuid.UUID][]Role{id: {RoleRegistrar}}})
	p := &Principal{ID: id}

	ok, err := svc.HasRole(context.Background(), p, RoleRegistrar)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasRole(context.Background(), p, RoleFacilities)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasRoleStoreFailureIsTransient(t *testing.T) {
	svc := NewService(&stubRepo{err: errors.New("connection refused")})
	ok, err := svc.HasRole(context.Background(), &Principal{ID: uuid.New()}, RoleFacilities)
	require.ErrorIs(t, err, shared.ErrTransient)
	require.False(t, ok)
}

func TestRequireSplitsUnauthorizedAndForbidden(t *testing.T) {
	id := uuid.New()
	svc := NewService(&stubRepo{roles: map[uuid.UUID][]Role{id: {RoleAccounting}}})

	require.ErrorIs(t, svc.Require(context.Background(), nil, RoleFacilities), shared.ErrUnauthorized)
	require.ErrorIs(t, svc.Require(context.Background(), &Principal{ID: id}, RoleFacilities), shared.ErrForbidden)
	require.NoError(t, svc.Require(context.Background(), &Principal{ID: id}, RoleAccounting))
}

func TestRolesSkipsUnknownAssignments(t *testing.T) {
	id := uuid.New()
	svc := NewService(&stubRepo{roles: map[uuid.UUID][]Role{id: {RoleFacilities, "legacy", RoleRegistrar}}})
	roles, err := svc.Roles(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, []Role{RoleFacilities, RoleRegistrar}, roles)
}

func TestAssignRejectsUnknownRole(t *testing.T) {
	repo := &stubRepo{}
	err := NewService(repo).Assign(context.Background(), nil, uuid.New(), Role("root"))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.assigned)
}

func TestRoleDashboardPaths(t *testing.T) {
	require.Equal(t, "/dashboard/mis", RoleFacilities.DashboardPath())
	require.Equal(t, "/dashboard/registrar", RoleRegistrar.DashboardPath())
	require.Equal(t, "/dashboard/accounting", RoleAccounting.DashboardPath())
	require.False(t, Role("mis_admin").Valid())
}
