package mural

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mural-service/internal/store"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string     `json:"username"`
		Password string     `json:"password"`
		Role     store.Role `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, "create user", err)
		return
	}
	u, err := s.users.Create(body.Username, body.Password, body.Role)
	if err != nil {
		writeFailure(w, "create user", err)
		return
	}
	log.Printf("mural: user %s created (%s)", u.Username, u.Role)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "user": u})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username    string `json:"username"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, "reset password", err)
		return
	}
	if err := s.users.SetPassword(body.Username, body.NewPassword); err != nil {
		writeFailure(w, "reset password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "username")
	if err := s.users.Delete(name); err != nil {
		writeFailure(w, "delete user", err)
		return
	}
	log.Printf("mural: user %s deleted", name)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
