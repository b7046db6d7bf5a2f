package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// RoleDeniedMessage is shown when a login picks a role the account does not hold.
const RoleDeniedMessage = "You don't have permission to access this role"

// ErrRoleNotHeld is returned by Login when the selected role is missing.
var ErrRoleNotHeld = fmt.Errorf("auth: role not held: %w", shared.ErrForbidden)

// ErrSessionMissing means the request carried no session to bind.
var ErrSessionMissing = errors.New("auth: session missing")

// User represents an authenticated user account.
type User struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal returns the identity view of u.
func (u *User) Principal() *rbac.Principal {
	if u == nil {
		return nil
	}
	return &rbac.Principal{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

// NewUser carries the columns written at sign-up.
type NewUser struct {
	Email        string
	FullName     string
	PasswordHash string
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Role     string `form:"role" validate:"required,oneof=facilities_admin registrar_admin accounting_admin"`
}

// SignUpInput is the account creation form.
type SignUpInput struct {
	FullName string `form:"full_name" validate:"required,max=120"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,min=8,max=72"`
	Role     string `form:"role" validate:"required,oneof=facilities_admin registrar_admin accounting_admin"`
}
