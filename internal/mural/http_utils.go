package mural

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"mural-service/internal/playlog"
	"mural-service/internal/slides"
	"mural-service/internal/store"
)

// apiError is an error that already knows its HTTP status.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	return e.msg
}

func badRequest(msg string) error { return &apiError{status: http.StatusBadRequest, msg: msg} }

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &apiError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		}
		return badRequest("invalid JSON body")
	}
	return nil
}

// writeFailure maps err to a status in one place. Unexpected errors are
// logged and reported as a bare 500.
func writeFailure(w http.ResponseWriter, op string, err error) {
	var ae *apiError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &ae):
		writeError(w, ae.status, ae.msg)
	case errors.As(err, &mbe), errors.Is(err, store.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrUserExists), errors.Is(err, store.ErrLastAdmin):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrBadPassword):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrInvalidName),
		errors.Is(err, store.ErrUnsupported),
		errors.Is(err, store.ErrMismatch),
		errors.Is(err, store.ErrInvalidUser),
		errors.Is(err, store.ErrInvalidRole),
		errors.Is(err, store.ErrWeakPassword),
		errors.Is(err, slides.ErrEmpty),
		errors.Is(err, slides.ErrBadColor),
		errors.Is(err, playlog.ErrInvalidPlay):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("mural: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
