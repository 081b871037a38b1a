package mural

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"mural-service/internal/manifest"
	"mural-service/internal/store"
)

// snapshot reads the library and config together. A broken media.json is
// logged and treated as empty so players keep showing the files.
func (s *Server) snapshot() (manifest.Manifest, error) {
	files, err := s.lib.List()
	if err != nil {
		return manifest.Manifest{}, err
	}
	doc, err := s.cfg.Load()
	if err != nil {
		log.Printf("mural: manifest: %v", err)
	}
	return manifest.Manifest{
		Defaults:  doc.Defaults,
		Overrides: doc.Items,
		Files:     files,
	}, nil
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	m, err := s.snapshot()
	if err != nil {
		writeFailure(w, "manifest", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	f, fi, err := s.lib.Open(name)
	if err != nil {
		if errors.Is(err, store.ErrInvalidName) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeFailure(w, "media", err)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}
