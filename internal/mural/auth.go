package mural

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mural-service/internal/store"
)

const sessionCookie = "mural_session"

type SessionClaims struct {
	Username  string     `json:"usr"`
	Role      store.Role `json:"role"`
	TokenType string     `json:"typ"`
	jwt.RegisteredClaims
}

type ctxUserKey struct{}

func currentUser(ctx context.Context) (store.User, bool) {
	u, ok := ctx.Value(ctxUserKey{}).(store.User)
	return u, ok
}

func (s *Server) issueSession(u store.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.sessionTTL)
	claims := &SessionClaims{
		Username:  u.Username,
		Role:      u.Role,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Server) parseSession(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.TokenType != "access" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// authMiddleware accepts the session cookie or a Bearer token. The account
// is looked up on every request so deleted users lose access at once and
// role changes apply without a new login.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			c, err := r.Cookie(sessionCookie)
			if err != nil || c.Value == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			raw = c.Value
		}

		claims, err := s.parseSession(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		usr, err := s.users.Get(claims.Username)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			writeFailure(w, "auth", err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserKey{}, usr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(role store.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			usr, ok := currentUser(r.Context())
			if !ok || usr.Role != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, "login", err)
		return
	}
	usr, err := s.users.Authenticate(body.Username, body.Password)
	if err != nil {
		writeFailure(w, "login", err)
		return
	}
	token, exp, err := s.issueSession(usr)
	if err != nil {
		writeFailure(w, "login", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("mural: login %s", usr.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"user":  usr.Public(),
		"token": token,
	})
}

// handleLogout only clears the cookie. Sessions are stateless and expire on
// their own.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	usr, _ := currentUser(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": usr.Public()})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, "change password", err)
		return
	}
	usr, _ := currentUser(r.Context())
	if err := s.users.ChangePassword(usr.Username, body.CurrentPassword, body.NewPassword); err != nil {
		writeFailure(w, "change password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
