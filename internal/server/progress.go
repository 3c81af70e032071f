package server

import (
	"log/slog"
	"net/http"
	"strconv"

	trailhead "github.com/eugener/trailhead/internal"
)

// resolveAthlete picks the athlete to serve. An explicit athlete_id query
// param wins; otherwise a single connected athlete is unambiguous. Writes
// the error response and returns false when no athlete can be resolved.
func (s *server) resolveAthlete(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if raw := r.URL.Query().Get("athlete_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid athlete_id"))
			return 0, false
		}
		return id, true
	}

	creds, err := s.deps.Creds.ListCredentials(r.Context())
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelError, "list credentials failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
		return 0, false
	}
	switch len(creds) {
	case 0:
		var e apiError
		e.Error.Message = "no connected athlete, visit /auth/strava/login to connect"
		e.Error.Type = "setup_required"
		writeJSON(w, http.StatusNotFound, e)
		return 0, false
	case 1:
		return creds[0].AthleteID, true
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse("multiple athletes connected, pass athlete_id"))
		return 0, false
	}
}

func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := s.resolveAthlete(w, r)
	if !ok {
		return
	}
	progress, err := s.deps.Progress.Progress(r.Context(), athleteID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *server) handleActivities(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := s.resolveAthlete(w, r)
	if !ok {
		return
	}
	acts, err := s.deps.Progress.Activities(r.Context(), athleteID)
	if err != nil {
		writeError(w, err)
		return
	}
	if acts == nil {
		acts = []trailhead.Activity{}
	}
	writeJSON(w, http.StatusOK, activityListResponse{
		Activities: acts,
		Count:      len(acts),
	})
}

// handleRefresh drops the athlete's cache entries and re-syncs from upstream.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := s.resolveAthlete(w, r)
	if !ok {
		return
	}
	synced, err := s.deps.Progress.ForceSync(r.Context(), athleteID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		AthleteID: athleteID,
		Synced:    synced,
	})
}

type activityListResponse struct {
	Activities []trailhead.Activity `json:"activities"`
	Count      int                  `json:"count"`
}

type refreshResponse struct {
	AthleteID int64 `json:"athlete_id"`
	Synced    int   `json:"synced"`
}
