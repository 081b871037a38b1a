package mural

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// corsMiddleware allows one browser origin to call the API with
// credentials. An empty origin disables CORS headers.
func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if allowedOrigin == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")

			if strings.ToUpper(r.Method) == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bodySizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 && r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// playerAuth guards player-facing writes with the shared player token when
// one is configured.
func (s *Server) playerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.playerToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := bearer(r)
		if !ok || subtle.ConstantTimeCompare([]byte(raw), []byte(s.playerToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid player token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// loginLimiter allows one login attempt per client IP per window.
type loginLimiter struct {
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newLoginLimiter(window time.Duration) *loginLimiter {
	return &loginLimiter{window: window, now: time.Now, lastSeen: map[string]time.Time{}}
}

func (l *loginLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		now := l.now()

		l.mu.Lock()
		last, ok := l.lastSeen[ip]
		if ok && now.Sub(last) < l.window {
			l.mu.Unlock()
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		l.lastSeen[ip] = now
		for k, t := range l.lastSeen {
			if now.Sub(t) > time.Minute {
				delete(l.lastSeen, k)
			}
		}
		l.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
