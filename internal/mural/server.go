// Package mural is the HTTP face of the service: the manifest and media for
// players, the session-protected admin API, and the push socket.
package mural

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mural-service/internal/playlog"
	"mural-service/internal/realtime"
	"mural-service/internal/store"
)

const (
	DefaultSessionTTL = 12 * time.Hour
	maxJSONBody       = 1 << 20
)

type Options struct {
	Library *store.Library
	Config  *store.Config
	Users   *store.Users
	Plays   playlog.Store
	Bus     realtime.Publisher
	Socket  http.Handler

	JWTSecret     []byte
	SessionTTL    time.Duration
	PlayerToken   string
	MaxUpload     int64
	AllowedOrigin string
}

type Server struct {
	lib   *store.Library
	cfg   *store.Config
	users *store.Users
	plays playlog.Store
	bus   realtime.Publisher
	ws    http.Handler

	jwtSecret     []byte
	sessionTTL    time.Duration
	playerToken   string
	maxUpload     int64
	allowedOrigin string

	logins *loginLimiter
	now    func() time.Time
}

func NewServer(o Options) *Server {
	s := &Server{
		lib:           o.Library,
		cfg:           o.Config,
		users:         o.Users,
		plays:         o.Plays,
		bus:           o.Bus,
		ws:            o.Socket,
		jwtSecret:     o.JWTSecret,
		sessionTTL:    o.SessionTTL,
		playerToken:   o.PlayerToken,
		maxUpload:     o.MaxUpload,
		allowedOrigin: o.AllowedOrigin,
		logins:        newLoginLimiter(time.Second),
		now:           time.Now,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.plays == nil {
		s.plays = playlog.Nop{}
	}
	return s
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Use(corsMiddleware(s.allowedOrigin))

	r.Get("/health", s.handleHealth)
	r.Get("/media/{name}", s.handleMedia)
	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(bodySizeLimitMiddleware(maxJSONBody))

			r.With(noStore).Get("/manifest", s.handleManifest)
			r.With(s.playerAuth).Post("/plays", s.handleRecordPlay)

			r.With(s.logins.middleware).Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(noStore)

			r.Group(func(r chi.Router) {
				r.Use(bodySizeLimitMiddleware(maxJSONBody))

				r.Get("/me", s.handleMe)
				r.Post("/me/password", s.handleChangePassword)

				r.Get("/admin/state", s.handleAdminState)
				r.Post("/admin/defaults", s.handleSetDefaults)
				r.Post("/admin/override", s.handleUpsertOverride)
				r.Delete("/admin/override/{src}", s.handleDeleteOverride)
				r.Delete("/admin/file/{src}", s.handleDeleteFile)
				r.Post("/admin/slides", s.handleCreateSlide)
				r.Get("/admin/plays", s.handleListPlays)
				r.Get("/admin/plays/{src}/last", s.handleLastPlay)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(store.RoleAdmin))
					r.Post("/users", s.handleCreateUser)
					r.Post("/users/password", s.handleResetPassword)
					r.Delete("/users/{username}", s.handleDeleteUser)
				})
			})

			r.With(bodySizeLimitMiddleware(s.uploadLimit())).Post("/admin/upload", s.handleUpload)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mural",
	})
}

// uploadLimit leaves room for the multipart framing around the file.
func (s *Server) uploadLimit() int64 {
	if s.maxUpload <= 0 {
		return 1 << 40
	}
	return s.maxUpload + 1<<20
}

// notify tells players the manifest changed. Failures are logged only:
// polling still reconciles within one interval.
func (s *Server) notify(ctx context.Context, reason, src string) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, realtime.ManifestChanged(reason, src)); err != nil {
		log.Printf("mural: publish %s: %v", reason, err)
	}
}
