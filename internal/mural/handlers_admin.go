package mural

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"mural-service/internal/manifest"
	"mural-service/internal/slides"
	"mural-service/internal/store"
)

func validateProps(p manifest.Props) error {
	if p.Type != nil && !p.Type.Valid() {
		return badRequest(fmt.Sprintf("unknown type %q", *p.Type))
	}
	if p.FitMode != nil && !p.FitMode.Valid() {
		return badRequest(fmt.Sprintf("unknown fitMode %q", *p.FitMode))
	}
	if p.ImageDurationMs != nil && !validDuration(*p.ImageDurationMs) {
		return badRequest("imageDurationMs must be between 1 and 86400000")
	}
	if p.HTMLDurationMs != nil && !validDuration(*p.HTMLDurationMs) {
		return badRequest("htmlDurationMs must be between 1 and 86400000")
	}
	if p.Volume != nil && (math.IsNaN(*p.Volume) || *p.Volume < 0 || *p.Volume > 1) {
		return badRequest("volume must be between 0 and 1")
	}
	if err := p.Schedule.Validate(); err != nil {
		return badRequest(err.Error())
	}
	return nil
}

func validDuration(ms int) bool {
	return ms > 0 && ms <= manifest.MaxDurationMs
}

func srcParam(r *http.Request) (string, error) {
	src, err := url.PathUnescape(chi.URLParam(r, "src"))
	if err != nil || src == "" {
		return "", badRequest("invalid src")
	}
	return src, nil
}

func (s *Server) handleAdminState(w http.ResponseWriter, r *http.Request) {
	m, err := s.snapshot()
	if err != nil {
		writeFailure(w, "admin state", err)
		return
	}
	usr, _ := currentUser(r.Context())
	resp := map[string]any{
		"defaults":    m.Defaults,
		"overrides":   m.Overrides,
		"files":       m.Files,
		"currentUser": usr.Public(),
	}
	if usr.Role == store.RoleAdmin {
		users, err := s.users.List()
		if err != nil {
			writeFailure(w, "admin state", err)
			return
		}
		resp["users"] = users
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetDefaults(w http.ResponseWriter, r *http.Request) {
	var p manifest.Props
	if err := decodeJSON(r, &p); err != nil {
		writeFailure(w, "defaults", err)
		return
	}
	if err := validateProps(p); err != nil {
		writeFailure(w, "defaults", err)
		return
	}
	out, err := s.cfg.SetDefaults(p)
	if err != nil {
		writeFailure(w, "defaults", err)
		return
	}
	s.notify(r.Context(), "defaults", "")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "defaults": out})
}

func (s *Server) handleUpsertOverride(w http.ResponseWriter, r *http.Request) {
	var o manifest.Override
	if err := decodeJSON(r, &o); err != nil {
		writeFailure(w, "override", err)
		return
	}
	if o.Src == "" || manifest.Reserved(o.Src) {
		writeError(w, http.StatusBadRequest, "src is required")
		return
	}
	if err := validateProps(o.Props); err != nil {
		writeFailure(w, "override", err)
		return
	}
	out, err := s.cfg.UpsertOverride(o)
	if err != nil {
		writeFailure(w, "override", err)
		return
	}
	s.notify(r.Context(), "override", out.Src)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "override": out})
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	src, err := srcParam(r)
	if err != nil {
		writeFailure(w, "delete override", err)
		return
	}
	if err := s.cfg.DeleteOverride(src); err != nil {
		writeFailure(w, "delete override", err)
		return
	}
	s.notify(r.Context(), "override", src)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleDeleteFile removes the file and its override. A file that is already
// gone still has its override cleaned up.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	src, err := srcParam(r)
	if err != nil {
		writeFailure(w, "delete file", err)
		return
	}
	if err := s.lib.Remove(src); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeFailure(w, "delete file", err)
		return
	}
	if err := s.cfg.DeleteOverride(src); err != nil {
		writeFailure(w, "delete file", err)
		return
	}
	log.Printf("mural: deleted %s", src)
	s.notify(r.Context(), "delete", src)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleUpload streams the multipart "file" part straight into the library
// without buffering the whole body.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			writeError(w, http.StatusBadRequest, "missing file")
			return
		}
		if err != nil {
			writeFailure(w, "upload", badRequestFrom(err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		name, err := s.lib.Save(part.FileName(), part)
		_ = part.Close()
		if err != nil {
			writeFailure(w, "upload", err)
			return
		}
		log.Printf("mural: uploaded %s", name)
		s.notify(r.Context(), "upload", name)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "file": name})
		return
	}
}

// badRequestFrom keeps size errors intact and turns other multipart
// framing errors into a 400.
func badRequestFrom(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	return badRequest("malformed multipart body")
}

func (s *Server) handleCreateSlide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		slides.Slide
		DurationMs int `json:"durationMs,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeFailure(w, "slide", err)
		return
	}
	if body.DurationMs < 0 || body.DurationMs > manifest.MaxDurationMs {
		writeError(w, http.StatusBadRequest, "durationMs must be between 1 and 86400000")
		return
	}
	html, err := slides.Render(body.Slide)
	if err != nil {
		writeFailure(w, "slide", err)
		return
	}
	name := slides.FileName(body.Slide)
	if err := s.lib.WriteFile(name, html); err != nil {
		writeFailure(w, "slide", err)
		return
	}
	if body.DurationMs > 0 {
		d := body.DurationMs
		if _, err := s.cfg.UpsertOverride(manifest.Override{Src: name, Props: manifest.Props{HTMLDurationMs: &d}}); err != nil {
			writeFailure(w, "slide", err)
			return
		}
	}
	s.notify(r.Context(), "slide", name)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "file": name})
}
