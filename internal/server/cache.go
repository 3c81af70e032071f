package server

import "net/http"

func (s *server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Cache.Stats())
}

func (s *server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing key parameter"))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Cache.Info(key))
}

func (s *server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	items, bytes := s.deps.Cache.Clear()
	writeJSON(w, http.StatusOK, clearResponse{
		Cleared: items,
		Bytes:   bytes,
	})
}

type clearResponse struct {
	Cleared int   `json:"cleared"`
	Bytes   int64 `json:"bytes"`
}
