package mural

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{"Success", map[string]string{"username": "ROOT", "password": "rootpass"}, http.StatusOK},
		{"Wrong Password", map[string]string{"username": "root", "password": "nope"}, http.StatusUnauthorized},
		{"Unknown User", map[string]string{"username": "ghost", "password": "rootpass"}, http.StatusUnauthorized},
		{"Invalid JSON", "invalid-json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(http.MethodPost, "/api/login", tt.body, "")
			assert.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/api/login", map[string]string{"username": "root", "password": "rootpass"}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, map[string]interface{}{"username": "root", "role": "admin"}, body["user"])

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, sessionCookie, c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, body["token"], c.Value)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(c)
	me := httptest.NewRecorder()
	f.h.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.JSONEq(t, `{"user":{"username":"root","role":"admin"}}`, me.Body.String())
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.srv.logins = newLoginLimiter(time.Minute)
	f.h = f.srv.Router()

	body := map[string]string{"username": "root", "password": "nope"}
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/login", body, "").Code)
	rr := f.do(http.MethodPost, "/api/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"too many login attempts"}`, rr.Body.String())
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodPost, "/api/logout", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t)

	refresh := func() string {
		claims := &SessionClaims{
			Username:  "root",
			TokenType: "refresh",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.srv.jwtSecret)
		require.NoError(t, err)
		return s
	}()
	forged := func() string {
		claims := &SessionClaims{Username: "root", TokenType: "access"}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
		require.NoError(t, err)
		return s
	}()

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{"Valid", f.adminToken, http.StatusOK},
		{"Missing", "", http.StatusUnauthorized},
		{"Garbage", "not-a-jwt", http.StatusUnauthorized},
		{"Wrong Type", refresh, http.StatusUnauthorized},
		{"Wrong Secret", forged, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := f.do(http.MethodGet, "/api/me", nil, tt.token)
			assert.Equal(t, tt.expectedStatus, rr.Code)
		})
	}
}

func TestAuthMiddleware_ExpiredSession(t *testing.T) {
	f := newFixture(t)
	f.srv.now = func() time.Time { return time.Now().Add(DefaultSessionTTL + time.Minute) }

	rr := f.do(http.MethodGet, "/api/me", nil, f.adminToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_DeletedUserLosesAccess(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.srv.users.Delete("ed"))

	rr := f.do(http.MethodGet, "/api/me", nil, f.userToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/api/me/password", map[string]string{"currentPassword": "wrong", "newPassword": "fresh-one"}, f.userToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(http.MethodPost, "/api/me/password", map[string]string{"currentPassword": "edpass", "newPassword": "abc"}, f.userToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "at least"))

	rr = f.do(http.MethodPost, "/api/me/password", map[string]string{"currentPassword": "edpass", "newPassword": "fresh-one"}, f.userToken)
	require.Equal(t, http.StatusOK, rr.Code)

	_, err := f.srv.users.Authenticate("ed", "fresh-one")
	assert.NoError(t, err)
}

func TestUsersRoutes(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/api/users", map[string]string{"username": "kim", "password": "kimpass"}, f.userToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodPost, "/api/users", map[string]string{"username": "kim", "password": "kimpass"}, f.adminToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"ok":true,"user":{"username":"kim","role":"user"}}`, rr.Body.String())

	rr = f.do(http.MethodPost, "/api/users", map[string]string{"username": "kim", "password": "kimpass"}, f.adminToken)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(http.MethodPost, "/api/users", map[string]string{"username": "lee", "password": "leepass", "role": "root"}, f.adminToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodPost, "/api/users/password", map[string]string{"username": "kim", "newPassword": "reset-me"}, f.adminToken)
	require.Equal(t, http.StatusOK, rr.Code)
	_, err := f.srv.users.Authenticate("kim", "reset-me")
	assert.NoError(t, err)

	rr = f.do(http.MethodPost, "/api/users/password", map[string]string{"username": "ghost", "newPassword": "reset-me"}, f.adminToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodDelete, "/api/users/root", nil, f.adminToken)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(http.MethodDelete, "/api/users/kim", nil, f.adminToken)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = f.do(http.MethodDelete, "/api/users/kim", nil, f.adminToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
