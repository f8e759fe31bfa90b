package syncserver

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the response shape for GET /health, per spec.md §4.9.
type HealthStatus struct {
	Status  string `json:"status"`
	UptimeS int64  `json:"uptime_s"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := HealthStatus{
		Status:  "ok",
		UptimeS: int64(time.Since(s.startedAt).Seconds()),
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// SyncInfo is the response shape for GET /sync/info.
type SyncInfo struct {
	RepoID          string `json:"repo_id"`
	DefaultBranch   string `json:"default_branch"`
	ProtocolVersion int    `json:"protocol_version"`
}

func (s *Server) handleSyncInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SyncInfo{
		RepoID:          s.cfg.RepoID,
		DefaultBranch:   s.cfg.DefaultBranch,
		ProtocolVersion: s.cfg.ProtocolVer,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
