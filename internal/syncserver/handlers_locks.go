package syncserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rune-vcs/rune/internal/auth"
	"github.com/rune-vcs/rune/internal/lfs"
)

// LockAcquireRequest is the body of POST /locks/acquire.
type LockAcquireRequest struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	TTLS   int64  `json:"ttl_s,omitempty"`
}

func (s *Server) handleLockAcquire(w http.ResponseWriter, r *http.Request) {
	var req LockAcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	tok, _ := auth.PrincipalFromContext(r.Context())
	reason := lfs.Reason(req.Reason)
	if reason == "" {
		reason = lfs.ReasonDevelopment
	}

	var ttl time.Duration
	if req.TTLS > 0 {
		ttl = time.Duration(req.TTLS) * time.Second
	}

	lock, err := s.cfg.LFS.Acquire(req.Path, tok.Principal, reason, ttl, false)
	if err != nil {
		writeRerr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]lfs.Lock{"lock": lock})
}

// LockReleaseRequest is the body of POST /locks/release.
type LockReleaseRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force,omitempty"`
}

func (s *Server) handleLockRelease(w http.ResponseWriter, r *http.Request) {
	var req LockReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	tok, _ := auth.PrincipalFromContext(r.Context())
	if req.Force && !tok.Has(auth.PermAdmin) {
		http.Error(w, "force release requires admin", http.StatusForbidden)
		return
	}

	released, err := s.cfg.LFS.Release(req.Path, tok.Principal, req.Force)
	if err != nil {
		writeRerr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": released})
}

func (s *Server) handleLockList(w http.ResponseWriter, r *http.Request) {
	locks, err := s.cfg.LFS.List()
	if err != nil {
		writeRerr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, locks)
}
