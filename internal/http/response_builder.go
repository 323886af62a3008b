package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/services"
	"famfin/internal/session"
	"famfin/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps service and domain errors to an HTTP status and a message
// safe to show to the client.
func errorStatus(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, services.ErrNotAuthenticated), errors.Is(err, session.ErrInvalidToken):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case core.IsValidationError(err):
		return http.StatusUnprocessableEntity, err.Error()
	case services.IsNotFound(err):
		return http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, store.ErrLastAdmin):
		return http.StatusConflict, "family must keep an admin"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "already exists"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError renders err. Unexpected failures on mutating requests read
// "failed to save" so the client knows nothing was stored.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		if isWrite(r.Method) {
			msg = "failed to save"
		}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="famfin"`)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
