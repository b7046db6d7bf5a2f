package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusdesk/campusdesk/internal/platform/db"
	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
)

// RoleService is the slice of rbac.Service used by auth.
type RoleService interface {
	HasRole(ctx context.Context, principal *rbac.Principal, role rbac.Role) (bool, error)
	Roles(ctx context.Context, userID uuid.UUID) ([]rbac.Role, error)
	Assign(ctx context.Context, q db.DBTX, userID uuid.UUID, role rbac.Role) error
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	roles      RoleService
	validate   *validator.Validate
	sessionTTL time.Duration
	hashCost   int
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleService, sessionTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:     logger,
		repo:       repo,
		roles:      roles,
		validate:   shared.NewValidator(),
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// WithHashCost overrides the bcrypt cost, mainly for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, shared.Transient("auth: find user", err)
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// LoginMeta carries request details recorded with the session row.
type LoginMeta struct {
	IP        string
	UserAgent string
}

// Login authenticates in, confirms the chosen role and binds the account to sess.
// A valid account without the role leaves sess signed out and returns ErrRoleNotHeld.
func (s *Service) Login(ctx context.Context, sess *shared.Session, in LoginInput, meta LoginMeta) (*User, rbac.Role, error) {
	if sess == nil {
		return nil, "", ErrSessionMissing
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return nil, "", err
	}
	user, err := s.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return nil, "", err
	}
	role := rbac.Role(in.Role)
	ok, err := s.roles.HasRole(ctx, user.Principal(), role)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		if err := s.SignOut(ctx, sess); err != nil {
			return nil, "", err
		}
		return nil, "", ErrRoleNotHeld
	}

	sess.Renew()
	sess.SetUser(user.ID.String())
	if err := s.repo.CreateSession(ctx, sess.ID, user.ID, s.now().Add(s.sessionTTL), meta.IP, meta.UserAgent); err != nil {
		s.logger.Warn("register session", slog.Any("error", err), slog.String("user_id", user.ID.String()))
	}
	return user, role, nil
}

// SignUp creates an account holding exactly one role.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	role := rbac.Role(in.Role)
	user, err := s.repo.CreateUser(ctx, NewUser{Email: in.Email, FullName: in.FullName, PasswordHash: string(hash)}, func(q db.DBTX, id uuid.UUID) error {
		return s.roles.Assign(ctx, q, id, role)
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateAccount) || errors.Is(err, shared.ErrValidation) {
			return nil, err
		}
		return nil, shared.Transient("auth: create user", err)
	}
	return user, nil
}

// CurrentPrincipal restores the principal bound to sess. An anonymous session,
// a malformed id or a missing or disabled account all yield nil without error.
func (s *Service) CurrentPrincipal(ctx context.Context, sess *shared.Session) (*rbac.Principal, error) {
	if sess == nil || sess.User() == "" {
		return nil, nil
	}
	id, err := uuid.Parse(sess.User())
	if err != nil {
		return nil, nil
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, shared.Transient("auth: load principal", err)
	}
	if !user.IsActive {
		return nil, nil
	}
	return user.Principal(), nil
}

// DefaultDashboard returns the dashboard of the first role held by principal.
func (s *Service) DefaultDashboard(ctx context.Context, principal *rbac.Principal) (string, bool, error) {
	if principal == nil {
		return "", false, nil
	}
	roles, err := s.roles.Roles(ctx, principal.ID)
	if err != nil {
		return "", false, err
	}
	if len(roles) == 0 {
		return "", false, nil
	}
	return roles[0].DashboardPath(), true, nil
}

// SignOut unbinds the principal, drops the session row and rotates the session id.
// Pending flashes survive so the next page can still show them.
func (s *Service) SignOut(ctx context.Context, sess *shared.Session) error {
	if sess == nil {
		return nil
	}
	if sess.User() == "" {
		return nil
	}
	oldID := sess.ID
	sess.ClearUser()
	sess.Delete(shared.CSRFSessionKey)
	sess.Renew()
	if err := s.repo.DeleteSession(ctx, oldID); err != nil {
		return shared.Transient("auth: delete session", err)
	}
	return nil
}
