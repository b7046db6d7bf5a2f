package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/campusdesk/internal/shared"
)

type stubPrincipals struct {
	principal *Principal
	err       error
	resolves  int
	signOuts  int
}

func (s *stubPrincipals) CurrentPrincipal(_ context.Context, sess *shared.Session) (*Principal, error) {
	s.resolves++
	return s.principal, s.err
}

func (s *stubPrincipals) SignOut(_ context.Context, sess *shared.Session) error {
	s.signOuts++
	sess.ClearUser()
	return nil
}

type stubChecker struct {
	ok    bool
	err   error
	calls int
}

func (s *stubChecker) HasRole(context.Context, *Principal, Role) (bool, error) {
	s.calls++
	return s.ok, s.err
}

func guardRequest(sess *shared.Session, htmx bool) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard/mis", nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	return req
}

func signedIn(id uuid.UUID) *shared.Session {
	sess := &shared.Session{ID: "s1"}
	sess.SetUser(id.String())
	return sess
}

func TestRequireRoleWithoutSessionRedirectsWithoutFetching(t *testing.T) {
	principals := &stubPrincipals{}
	checker := &stubChecker{ok: true}
	mw := Middleware{Roles: checker, Principals: principals}
	reached := false
	h := mw.RequireRole(RoleFacilities)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, guardRequest(&shared.Session{ID: "anon"}, false))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/auth/login", rr.Header().Get("Location"))
	require.False(t, reached)
	require.Zero(t, principals.resolves)
	require.Zero(t, checker.calls)
}

func TestRequireRoleWrongRoleSignsOutAndFlashes(t *testing.T) {
	id := uuid.New()
	principals := &stubPrincipals{principal: &Principal{ID: id}}
	mw := Middleware{Roles: &stubChecker{ok: false}, Principals: principals}
	reached := false
	h := mw.RequireRole(RoleFacilities)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	sess := signedIn(id)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, guardRequest(sess, false))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.False(t, reached)
	require.Equal(t, 1, principals.signOuts)
	require.Empty(t, sess.User())
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, shared.NotifyError, flash.Kind)
	require.Equal(t, DeniedMessage, flash.Message)
}

func TestRequireRoleFailsClosedOnStoreError(t *testing.T) {
	id := uuid.New()
	principals := &stubPrincipals{principal: &Principal{ID: id}}
	mw := Middleware{Roles: &stubChecker{err: shared.Transient("has role", errors.New("timeout"))}, Principals: principals}
	reached := false
	h := mw.RequireRole(RoleFacilities)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	sess := signedIn(id)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, guardRequest(sess, false))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.False(t, reached)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, shared.UserMessage(shared.ErrTransient), flash.Message)
}

func TestRequireRolePrincipalLookupErrorFailsClosed(t *testing.T) {
	mw := Middleware{Roles: &stubChecker{ok: true}, Principals: &stubPrincipals{err: shared.Transient("load user", errors.New("eof"))}}
	reached := false
	h := mw.RequireRole(RoleFacilities)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { reached = true }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, guardRequest(signedIn(uuid.New()), false))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.False(t, reached)
}

func TestRequireRoleHTMXUsesHeader(t *testing.T) {
	mw := Middleware{Roles: &stubChecker{}, Principals: &stubPrincipals{}, LoginPath: "/auth/login"}
	h := mw.RequireRole(RoleFacilities)(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, guardRequest(nil, true))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "/auth/login", rr.Header().Get("HX-Redirect"))
}

func TestRequireRolePassesPrincipalDownstream(t *testing.T) {
	id := uuid.New()
	mw := Middleware{Roles: &stubChecker{ok: true}, Principals: &stubPrincipals{principal: &Principal{ID: id, Email: "mis@campus.edu"}}}
	var got *Principal
	h := mw.RequireRole(RoleFacilities)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, guardRequest(signedIn(id), false))

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, got)
	require.Equal(t, id, got.ID)
}
