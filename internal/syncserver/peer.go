package syncserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const (
	probePeriod   = 10 * time.Second
	probeTimeout  = 3 * time.Second
	liveThreshold = 3 // consecutive successful probes required to be "live"
)

// peerEntry is one named remote in the registry (name -> url), plus the
// rolling probe state used to derive liveness, per spec.md §4.9: "A peer is
// 'live' if three consecutive probes succeed."
type peerEntry struct {
	Name              string `json:"name"`
	URL               string `json:"url"`
	Live              bool   `json:"live"`
	consecutiveOK     int
	consecutiveFailed int
}

// peerRegistry tracks named peers and periodically probes their /health
// endpoints. Grounded in internal/repomanager/scheduler.go's
// ticker-driven periodic-task style (fetchLoop/evictionLoop), generalized
// from "refresh a cloned repo" to "probe a remote's liveness."
type peerRegistry struct {
	mu    sync.RWMutex
	peers map[string]*peerEntry
	client *http.Client
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{
		peers:  make(map[string]*peerEntry),
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Put registers or updates a named peer's URL. Only called from
// admin-authorized handlers, per spec.md §4.9: "A naming registry (name →
// url) is writable only by admin tokens."
func (pr *peerRegistry) Put(name, url string) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	if existing, ok := pr.peers[name]; ok {
		existing.URL = url
		return
	}
	pr.peers[name] = &peerEntry{Name: name, URL: url}
}

// List returns a snapshot of every registered peer and its current
// liveness.
func (pr *peerRegistry) List() []peerEntry {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	out := make([]peerEntry, 0, len(pr.peers))
	for _, p := range pr.peers {
		out = append(out, peerEntry{Name: p.Name, URL: p.URL, Live: p.Live})
	}
	return out
}

// probeLoop runs for the lifetime of ctx, probing every registered peer's
// /health endpoint every probePeriod.
func (pr *peerRegistry) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(probePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pr.probeAll()
		}
	}
}

func (pr *peerRegistry) probeAll() {
	pr.mu.RLock()
	targets := make([]*peerEntry, 0, len(pr.peers))
	for _, p := range pr.peers {
		targets = append(targets, p)
	}
	pr.mu.RUnlock()

	for _, p := range targets {
		ok := pr.probeOne(p.URL)

		pr.mu.Lock()
		if ok {
			p.consecutiveOK++
			p.consecutiveFailed = 0
			if p.consecutiveOK >= liveThreshold {
				p.Live = true
			}
		} else {
			p.consecutiveFailed++
			p.consecutiveOK = 0
			p.Live = false
		}
		pr.mu.Unlock()
	}
}

func (pr *peerRegistry) probeOne(url string) bool {
	resp, err := pr.client.Get(url + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// handleRegistry dispatches GET (list) and POST (register) for
// /registry/peers. Both methods require admin, enforced by requirePerm at
// the route level.
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.registry.List())
	case http.MethodPost:
		var body struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.URL == "" {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		s.registry.Put(body.Name, body.URL)
		writeJSON(w, http.StatusOK, map[string]bool{"registered": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
