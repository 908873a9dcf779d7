package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newGuard(t *testing.T) *Guard {
	t.Helper()
	g := NewGuard(filepath.Join(t.TempDir(), ".auth_hash"))
	g.Cost = bcrypt.MinCost
	return g
}

func post(h http.HandlerFunc, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == cookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestPasswordLifecycle(t *testing.T) {
	g := newGuard(t)
	has, err := g.HasPassword()
	require.NoError(t, err)
	assert.False(t, has)

	ok, err := g.VerifyPassword("anything")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, g.SetPassword("short"), ErrPasswordTooShort)
	require.NoError(t, g.SetPassword("correct horse"))

	has, err = g.HasPassword()
	require.NoError(t, err)
	assert.True(t, has)

	ok, err = g.VerifyPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = g.VerifyPassword("wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetupLoginFlow(t *testing.T) {
	g := newGuard(t)

	rr := httptest.NewRecorder()
	g.Status(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"need_setup":true,"logged_in":false}`, rr.Body.String())

	assert.Equal(t, http.StatusBadRequest, post(g.Setup, `{"password":"secret1","confirm":"secret2"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(g.Setup, `{"password":"abc","confirm":"abc"}`).Code)
	assert.Equal(t, http.StatusOK, post(g.Setup, `{"password":"secret1","confirm":"secret1"}`).Code)
	assert.Equal(t, http.StatusConflict, post(g.Setup, `{"password":"secret1","confirm":"secret1"}`).Code)

	assert.Equal(t, http.StatusUnauthorized, post(g.Login, `{"password":"nope"}`).Code)
	login := post(g.Login, `{"password":"secret1"}`)
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	g.Status(rr, req)
	assert.JSONEq(t, `{"need_setup":false,"logged_in":true}`, rr.Body.String())

	post(g.Logout, ``, cookie)
	_, ok := g.getSession(req)
	assert.False(t, ok)
}

func TestRequireAuth(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.SetPassword("secret1"))
	protected := g.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	cookie := sessionCookie(t, post(g.Login, `{"password":"secret1"}`))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestSessionExpires(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.SetPassword("secret1"))
	cookie := sessionCookie(t, post(g.Login, `{"password":"secret1"}`))

	g.now = func() time.Time { return time.Now().Add(sessionTTL + time.Minute) }
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	_, ok := g.getSession(req)
	assert.False(t, ok)
}

func TestResetEndsOtherSessions(t *testing.T) {
	g := newGuard(t)
	require.NoError(t, g.SetPassword("secret1"))
	old := sessionCookie(t, post(g.Login, `{"password":"secret1"}`))

	assert.Equal(t, http.StatusUnauthorized, post(g.Reset, `{"current_password":"bad","new_password":"secret2","confirm":"secret2"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(g.Reset, `{"current_password":"secret1","new_password":"secret2","confirm":"other"}`).Code)

	rr := post(g.Reset, `{"current_password":"secret1","new_password":"secret2","confirm":"secret2"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	fresh := sessionCookie(t, rr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(old)
	_, ok := g.getSession(req)
	assert.False(t, ok)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(fresh)
	_, ok = g.getSession(req)
	assert.True(t, ok)

	ok, err := g.VerifyPassword("secret2")
	require.NoError(t, err)
	assert.True(t, ok)
}
