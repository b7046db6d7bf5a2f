package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/campusdesk/campusdesk/internal/shared"
)

// DeniedMessage is flashed when a principal opens a dashboard without its role.
const DeniedMessage = "You don't have permission to access this dashboard"

// RoleChecker answers the role question for a principal.
type RoleChecker interface {
	HasRole(ctx context.Context, principal *Principal, role Role) (bool, error)
}

// PrincipalResolver restores and discards the principal bound to a session.
type PrincipalResolver interface {
	CurrentPrincipal(ctx context.Context, sess *shared.Session) (*Principal, error)
	SignOut(ctx context.Context, sess *shared.Session) error
}

// Middleware gates dashboard routes on a single role.
type Middleware struct {
	Roles      RoleChecker
	Principals PrincipalResolver
	Logger     *slog.Logger
	LoginPath  string
}

// RequireRole admits only principals holding role. Every other outcome,
// including store failures, ends in a redirect to the login page.
func (m Middleware) RequireRole(role Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := shared.SessionFromContext(ctx)
			if sess == nil || sess.User() == "" {
				m.redirect(w, r)
				return
			}

			principal, err := m.Principals.CurrentPrincipal(ctx, sess)
			if err != nil {
				m.logger().Error("rbac resolve principal", slog.Any("error", err))
				shared.NotifyErr(sess, err)
				m.redirect(w, r)
				return
			}
			if principal == nil {
				m.redirect(w, r)
				return
			}

			ok, err := m.Roles.HasRole(ctx, principal, role)
			if err != nil {
				m.logger().Error("rbac require role", slog.Any("error", err), slog.String("role", string(role)))
				shared.NotifyErr(sess, err)
				m.redirect(w, r)
				return
			}
			if !ok {
				m.logger().Warn("rbac denied", slog.String("user_id", principal.ID.String()), slog.String("role", string(role)))
				shared.Notify(sess, shared.NotifyError, DeniedMessage)
				if err := m.Principals.SignOut(ctx, sess); err != nil {
					m.logger().Error("rbac sign out", slog.Any("error", err))
				}
				m.redirect(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(ctx, principal)))
		})
	}
}

func (m Middleware) redirect(w http.ResponseWriter, r *http.Request) {
	target := m.LoginPath
	if target == "" {
		target = "/auth/login"
	}
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
