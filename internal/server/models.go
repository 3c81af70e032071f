package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	trailhead "github.com/eugener/trailhead/internal"
)

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = "invalid_request_error"
	return e
}

// writeError maps domain sentinels to HTTP statuses. A revoked refresh token
// is surfaced as 409 with a pointer to the login flow rather than a bare 500,
// so the dashboard can render a "reconnect Strava" prompt.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, trailhead.ErrReauthRequired) {
		var e apiError
		e.Error.Message = "Strava authorization expired, visit /auth/strava/login to reconnect"
		e.Error.Type = "reauth_required"
		writeJSON(w, http.StatusConflict, e)
		return
	}
	writeJSON(w, errorStatus(err), errorResponse(err.Error()))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, trailhead.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, trailhead.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, trailhead.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, trailhead.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
