package mural

import (
	"errors"
	"net/http"
	"strconv"

	"mural-service/internal/playlog"
)

func (s *Server) handleRecordPlay(w http.ResponseWriter, r *http.Request) {
	var p playlog.Play
	if err := decodeJSON(r, &p); err != nil {
		writeFailure(w, "record play", err)
		return
	}
	switch p.Outcome {
	case "", playlog.OutcomeShown, playlog.OutcomeEnded, playlog.OutcomeError, playlog.OutcomeCutOff:
	default:
		writeError(w, http.StatusBadRequest, "unknown outcome")
		return
	}
	out, err := s.plays.Record(r.Context(), p)
	if err != nil {
		writeFailure(w, "record play", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListPlays(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := s.plays.Recent(r.Context(), limit)
	if err != nil {
		writeFailure(w, "list plays", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleLastPlay(w http.ResponseWriter, r *http.Request) {
	src, err := srcParam(r)
	if err != nil {
		writeFailure(w, "last play", err)
		return
	}
	p, err := s.plays.Last(r.Context(), src)
	if err != nil {
		if errors.Is(err, playlog.ErrNoPlays) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeFailure(w, "last play", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
