package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"braindump/internal/domain"
	"braindump/internal/httputil"
	"braindump/internal/session"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoActiveDocument):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrSessionFailed), errors.Is(err, session.ErrClosed):
		httputil.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		status := domain.StatusCode(err)
		detail := err.Error()
		if status == http.StatusInternalServerError {
			detail = "internal server error"
		}
		httputil.RespondError(w, status, detail)
	}
}

// PathParam returns a required path value, writing a 400 when it is empty.
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// requireUserID returns the authenticated user's id, writing a 401 when the
// request was not authenticated.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Join(domain.ErrValidation, err)
	}
	return id, nil
}
