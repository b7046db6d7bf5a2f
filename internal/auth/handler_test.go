package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusdesk/campusdesk/internal/auth"
	"github.com/campusdesk/campusdesk/internal/platform/db"
	"github.com/campusdesk/campusdesk/internal/rbac"
	"github.com/campusdesk/campusdesk/internal/shared"
	"github.com/campusdesk/campusdesk/internal/view"
	_ "github.com/campusdesk/campusdesk/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, nu auth.NewUser, within func(q db.DBTX, id uuid.UUID) error) (*auth.User, error) {
	if s.user != nil && s.user.Email == nu.Email {
		return nil, shared.ErrDuplicateAccount
	}
	return &auth.User{ID: uuid.New(), Email: nu.Email, FullName: nu.FullName, IsActive: true}, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type stubRoles struct {
	held []rbac.Role
}

func (s *stubRoles) HasRole(_ context.Context, p *rbac.Principal, role rbac.Role) (bool, error) {
	for _, r := range s.held {
		if p != nil && r == role {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRoles) Roles(context.Context, uuid.UUID) ([]rbac.Role, error) {
	return s.held, nil
}

func (s *stubRoles) Assign(context.Context, db.DBTX, uuid.UUID, rbac.Role) error {
	return nil
}

type fixture struct {
	handler  *auth.Handler
	sessions *shared.SessionManager
	router   http.Handler
}

func newFixture(t *testing.T, repo auth.Repository, roles auth.RoleService) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	handler := auth.NewHandler(nil, auth.NewService(repo, roles, time.Hour, nil).WithHashCost(bcrypt.MinCost), templates, csrfManager)
	return fixture{handler: handler, sessions: sessionManager}
}

// do runs one request through the handler with a session loaded from cookie.
func (f fixture) do(t *testing.T, method, path string, form url.Values, cookie *http.Cookie) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)

	router := chiRouter(f.handler)
	res := httptest.NewRecorder()
	w := &committingWriter{ResponseWriter: res, commit: func() error { return f.sessions.Commit(ctx, res, req, sess) }}
	router.ServeHTTP(w, req)
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	require.NoError(t, w.err)
	return res, sess
}

// committingWriter saves the session before the status line goes out, the
// way the session middleware does, so Set-Cookie lands in the recorder.
type committingWriter struct {
	http.ResponseWriter
	commit    func() error
	committed bool
	err       error
}

func (w *committingWriter) WriteHeader(status int) {
	if !w.committed {
		w.committed = true
		w.err = w.commit()
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *committingWriter) Write(b []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func cookieFrom(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	t.Fatal("session cookie missing")
	return nil
}

func seeded(t *testing.T) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{ID: uuid.New(), Email: "user@test.local", FullName: "Test", PasswordHash: string(hashed), IsActive: true}
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t, &stubRepo{}, &stubRoles{})
	res, sess := f.do(t, http.MethodGet, "/auth/login", nil, nil)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "<form")
	require.Contains(t, res.Body.String(), `value="registrar_admin"`)
	require.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t, &stubRepo{user: seeded(t)}, &stubRoles{held: []rbac.Role{rbac.RoleFacilities}})

	res, _ := f.do(t, http.MethodPost, "/auth/login", url.Values{
		"email": {"user@test.local"}, "password": {"wrongpass"}, "role": {"facilities_admin"},
	}, nil)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Contains(t, res.Body.String(), "Invalid email or password")
}

func TestLoginRedirectsToRoleDashboard(t *testing.T) {
	f := newFixture(t, &stubRepo{user: seeded(t)}, &stubRoles{held: []rbac.Role{rbac.RoleRegistrar}})

	res, sess := f.do(t, http.MethodPost, "/auth/login", url.Values{
		"email": {"user@test.local"}, "password": {"correctpass"}, "role": {"registrar_admin"},
	}, nil)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/dashboard/registrar", res.Header().Get("Location"))
	require.NotEmpty(t, sess.User())

	// a signed-in visitor is bounced from the login page
	again, _ := f.do(t, http.MethodGet, "/auth/login", nil, cookieFrom(t, res))
	require.Equal(t, http.StatusSeeOther, again.Code)
	require.Equal(t, "/dashboard/registrar", again.Header().Get("Location"))
}

func TestLoginWithRoleNotHeldShowsDenial(t *testing.T) {
	f := newFixture(t, &stubRepo{user: seeded(t)}, &stubRoles{held: []rbac.Role{rbac.RoleRegistrar}})

	res, sess := f.do(t, http.MethodPost, "/auth/login", url.Values{
		"email": {"user@test.local"}, "password": {"correctpass"}, "role": {"facilities_admin"},
	}, nil)

	require.Equal(t, http.StatusForbidden, res.Code)
	require.Contains(t, res.Body.String(), "You don&#39;t have permission to access this role")
	require.Empty(t, sess.User())
}

func TestSignupRedirectsToLogin(t *testing.T) {
	f := newFixture(t, &stubRepo{}, &stubRoles{})

	res, sess := f.do(t, http.MethodPost, "/auth/signup", url.Values{
		"full_name": {"Ada Lovelace"}, "email": {"ada@test.local"}, "password": {"password123"}, "role": {"accounting_admin"},
	}, nil)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/auth/login", res.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "Account created successfully! You can now login.", flash.Message)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFixture(t, &stubRepo{user: seeded(t)}, &stubRoles{})

	res, _ := f.do(t, http.MethodPost, "/auth/signup", url.Values{
		"full_name": {"Dup"}, "email": {"user@test.local"}, "password": {"password123"}, "role": {"accounting_admin"},
	}, nil)

	require.Equal(t, http.StatusConflict, res.Code)
	require.Contains(t, res.Body.String(), "An account with this email already exists")
}

func TestLogoutFlashesAndRedirects(t *testing.T) {
	f := newFixture(t, &stubRepo{user: seeded(t)}, &stubRoles{held: []rbac.Role{rbac.RoleAccounting}})
	login, _ := f.do(t, http.MethodPost, "/auth/login", url.Values{
		"email": {"user@test.local"}, "password": {"correctpass"}, "role": {"accounting_admin"},
	}, nil)

	res, sess := f.do(t, http.MethodPost, "/auth/logout", url.Values{}, cookieFrom(t, login))

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Empty(t, sess.User())
	require.NotEqual(t, cookieFrom(t, login).Value, cookieFrom(t, res).Value)
	var messages []string
	for flash := sess.PopFlash(); flash != nil; flash = sess.PopFlash() {
		messages = append(messages, flash.Message)
	}
	require.Contains(t, messages, "Logged out successfully")
}
