package syncserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rune-vcs/rune/internal/auth"
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// ObjectPayload carries the tree and blob bytes a batch of commits depends
// on, base64-encoded and keyed by hex id, so a client with no prior copy of
// the repository can push or pull a full object graph rather than commit
// metadata alone.
type ObjectPayload map[objstore.Hash]string

func (p ObjectPayload) writeInto(repo *objstore.Repository) error {
	for _, encoded := range p {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
		}
		if _, err := repo.WriteObject(data); err != nil {
			return err
		}
	}
	return nil
}

func collectObjectPayload(repo *objstore.Repository, commits []NamedCommit) (ObjectPayload, error) {
	out := ObjectPayload{}
	for _, nc := range commits {
		objs, err := repo.CollectObjects(nc.TreeID)
		if err != nil {
			return nil, err
		}
		for id, data := range objs {
			if _, ok := out[id]; !ok {
				out[id] = base64.StdEncoding.EncodeToString(data)
			}
		}
	}
	return out, nil
}

// BranchInfo is one entry of the GET /sync/branches response.
type BranchInfo struct {
	Name       string        `json:"name"`
	HeadCommit objstore.Hash `json:"head_commit"`
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	names, err := s.cfg.Repo.ListBranches()
	if err != nil {
		writeRerr(w, err)
		return
	}
	out := make([]BranchInfo, 0, len(names))
	for _, name := range names {
		head, _, err := s.cfg.Repo.BranchHead(name)
		if err != nil {
			writeRerr(w, err)
			return
		}
		out = append(out, BranchInfo{Name: name, HeadCommit: head})
	}
	writeJSON(w, http.StatusOK, out)
}

// NamedCommit pairs a commit with the id it was stored under, since
// objstore.Commit itself carries no self-referential hash.
type NamedCommit struct {
	ID objstore.Hash `json:"id"`
	objstore.Commit
}

func (s *Server) handleCommitsSince(w http.ResponseWriter, r *http.Request) {
	since := strings.TrimPrefix(r.URL.Path, "/sync/commits/")
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		branch = s.cfg.DefaultBranch
	}

	head, ok, err := s.cfg.Repo.BranchHead(branch)
	if err != nil {
		writeRerr(w, err)
		return
	}
	if !ok || head.Empty() {
		writeJSON(w, http.StatusOK, []NamedCommit{})
		return
	}

	commits, err := s.collectCommits(head, objstore.Hash(since))
	if err != nil {
		writeRerr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commits)
}

// collectCommits walks backward from head, stopping at (and excluding)
// stopAt, returning commits newest-first.
func (s *Server) collectCommits(head, stopAt objstore.Hash) ([]NamedCommit, error) {
	var out []NamedCommit
	seen := map[objstore.Hash]bool{}
	queue := []objstore.Hash{head}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id.Empty() || seen[id] || id == stopAt {
			continue
		}
		seen[id] = true

		c, err := s.cfg.Repo.ReadCommit(id)
		if err != nil {
			return nil, err
		}
		out = append(out, NamedCommit{ID: id, Commit: c})
		queue = append(queue, c.Parents...)
	}
	return out, nil
}

// PushRequest is the body of POST /sync/push.
type PushRequest struct {
	Commits []NamedCommit `json:"commits"`
	Branch  string        `json:"branch"`
	Force   bool          `json:"force"`
	Objects ObjectPayload `json:"objects,omitempty"`
}

// PushResponse is the body of a successful POST /sync/push.
type PushResponse struct {
	Accepted   bool          `json:"accepted"`
	AdvancedTo objstore.Hash `json:"advanced_to"`
}

// handlePush validates the incoming batch's topological closure (every
// parent either already known to the store or present in the same batch),
// then advances branch only if the result is a fast-forward or the caller
// holds admin and set force=true. The closure check runs before anything
// is written, and the branch ref moves only when the whole batch is
// accepted; a batch rejected as non-fast-forward leaves the objects and
// commits it wrote in the store with no ref pointing at them.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Branch == "" || len(req.Commits) == 0 {
		http.Error(w, "branch and commits are required", http.StatusBadRequest)
		return
	}

	inBatch := make(map[objstore.Hash]bool, len(req.Commits))
	for _, nc := range req.Commits {
		inBatch[nc.ID] = true
	}
	for _, nc := range req.Commits {
		for _, parent := range nc.Parents {
			if parent.Empty() || inBatch[parent] || s.cfg.Repo.HasObject(parent) {
				continue
			}
			http.Error(w, "commit "+string(nc.ID)+" references unknown parent "+string(parent), http.StatusBadRequest)
			return
		}
	}

	var newHead objstore.Hash
	err := s.cfg.Repo.Lock(objstore.DefaultWriteLockTimeout, func() error {
		if err := req.Objects.writeInto(s.cfg.Repo); err != nil {
			return err
		}
		for _, nc := range req.Commits {
			if _, err := s.cfg.Repo.WriteCommit(nc.Commit); err != nil {
				return err
			}
		}

		// The new head is whichever batch commit no other batch commit names
		// as a parent — the tip of the pushed chain.
		named := map[objstore.Hash]bool{}
		for _, nc := range req.Commits {
			for _, p := range nc.Parents {
				named[p] = true
			}
		}
		for _, nc := range req.Commits {
			if !named[nc.ID] {
				newHead = nc.ID
			}
		}

		current, _, err := s.cfg.Repo.BranchHead(req.Branch)
		if err != nil {
			return err
		}

		if !current.Empty() {
			fastForward, err := s.cfg.Repo.IsAncestor(current, newHead)
			if err != nil {
				return err
			}
			if !fastForward {
				if !req.Force {
					return rerr.New(rerr.State, rerr.CodeNonFastForward, string(newHead))
				}
				tok, _ := auth.PrincipalFromContext(r.Context())
				if !tok.Has(auth.PermAdmin) {
					return rerr.New(rerr.Auth, rerr.CodeForbidden, "force push requires admin")
				}
			}
		}

		if !s.cfg.Repo.BranchExists(req.Branch) {
			return s.cfg.Repo.CreateBranch(req.Branch, newHead)
		}
		return s.cfg.Repo.SetBranchHead(req.Branch, newHead)
	})
	if err != nil {
		writeRerr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PushResponse{Accepted: true, AdvancedTo: newHead})
}

// PullRequest is the body of POST /sync/pull.
type PullRequest struct {
	Branch      string        `json:"branch"`
	SinceCommit objstore.Hash `json:"since_commit,omitempty"`
}

// PullResponse is the body of a successful POST /sync/pull.
type PullResponse struct {
	Commits []NamedCommit `json:"commits"`
	Head    objstore.Hash `json:"head"`
	Objects ObjectPayload `json:"objects,omitempty"`
}

// handlePull returns every commit reachable from branch's head but not from
// since_commit, topologically sorted with roots first so the client can
// write them in parent-before-child order, per spec.md §4.9.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Branch == "" {
		req.Branch = s.cfg.DefaultBranch
	}

	head, ok, err := s.cfg.Repo.BranchHead(req.Branch)
	if err != nil {
		writeRerr(w, err)
		return
	}
	if !ok || head.Empty() {
		writeJSON(w, http.StatusOK, PullResponse{Commits: []NamedCommit{}, Head: head})
		return
	}

	newest, err := s.collectCommits(head, req.SinceCommit)
	if err != nil {
		writeRerr(w, err)
		return
	}

	// Reverse to roots-first order.
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}

	objects, err := collectObjectPayload(s.cfg.Repo, newest)
	if err != nil {
		writeRerr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PullResponse{Commits: newest, Head: head, Objects: objects})
}

func writeRerr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if e, ok := err.(*rerr.Error); ok {
		switch e.Kind {
		case rerr.UserInput:
			status = http.StatusBadRequest
		case rerr.State:
			status = http.StatusConflict
		case rerr.Concurrency:
			status = http.StatusConflict
		case rerr.Auth:
			if e.Code == rerr.CodeForbidden {
				status = http.StatusForbidden
			} else {
				status = http.StatusUnauthorized
			}
		case rerr.Integrity:
			status = http.StatusUnprocessableEntity
		case rerr.Network:
			status = http.StatusBadGateway
		}
	}
	http.Error(w, err.Error(), status)
}
