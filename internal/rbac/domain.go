package rbac

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role names a console capability held by a principal.
type Role string

const (
	// RoleFacilities manages rooms and room requests (the MIS dashboard).
	RoleFacilities Role = "facilities_admin"
	// RoleRegistrar opens the registrar portal.
	RoleRegistrar Role = "registrar_admin"
	// RoleAccounting opens the accounting portal.
	RoleAccounting Role = "accounting_admin"
)

// AllRoles lists roles in the order they are offered on forms.
var AllRoles = []Role{RoleFacilities, RoleRegistrar, RoleAccounting}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleFacilities, RoleRegistrar, RoleAccounting:
		return true
	}
	return false
}

// Label returns the human readable role name.
func (r Role) Label() string {
	switch r {
	case RoleFacilities:
		return "MIS Admin"
	case RoleRegistrar:
		return "Registrar Admin"
	case RoleAccounting:
		return "Accounting Admin"
	}
	return string(r)
}

// DashboardPath returns the landing page for the role.
func (r Role) DashboardPath() string {
	switch r {
	case RoleFacilities:
		return "/dashboard/mis"
	case RoleRegistrar:
		return "/dashboard/registrar"
	case RoleAccounting:
		return "/dashboard/accounting"
	}
	return "/"
}

// Principal describes the authenticated actor.
type Principal struct {
	ID       uuid.UUID
	Email    string
	FullName string
}

// Assignment links a user to a role.
type Assignment struct {
	UserID    uuid.UUID
	Role      Role
	CreatedAt time.Time
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal resolved by the guard.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by the guard, if any.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
