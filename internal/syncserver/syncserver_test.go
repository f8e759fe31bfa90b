package syncserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rune-vcs/rune/internal/auth"
	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/objstore"
)

func newTestServer(t *testing.T) (*Server, *objstore.Repository, *auth.Store, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := objstore.Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	store, err := auth.Open(repo.RuneDir)
	if err != nil {
		t.Fatalf("auth.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	issued, err := store.IssueToken("writer", []auth.Permission{auth.PermRead, auth.PermWrite, auth.PermAdmin, auth.PermLFS}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	s := New(Config{
		Repo:   repo,
		Auth:   store,
		LFS:    lfs.NewStore(repo.RuneDir),
		RepoID: "test-repo",
	})
	return s, repo, store, issued.Secret
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path, secret string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHealthRequiresNoAuth(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := doJSON(t, s.handleHealth, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "ok" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestSyncInfoRequiresReadToken(t *testing.T) {
	s, _, _, secret := newTestServer(t)
	handler := s.requirePerm(auth.PermRead, s.handleSyncInfo)

	rec := doJSON(t, handler, http.MethodGet, "/sync/info", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/sync/info", secret, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPushThenPullRoundTrip(t *testing.T) {
	s, repo, _, secret := newTestServer(t)

	root := objstore.NewTree(nil)
	treeID, err := repo.WriteTree(root)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commit := objstore.Commit{
		TreeID:    treeID,
		Author:    objstore.Now("alice", "alice@example.com"),
		Committer: objstore.Now("alice", "alice@example.com"),
		Message:   "initial commit",
	}
	commitID, err := repo.WriteCommit(commit)
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	pushHandler := s.requirePerm(auth.PermWrite, s.handlePush)
	pushReq := PushRequest{
		Commits: []NamedCommit{{ID: commitID, Commit: commit}},
		Branch:  "main",
	}
	rec := doJSON(t, pushHandler, http.MethodPost, "/sync/push", secret, pushReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("push failed: %d: %s", rec.Code, rec.Body.String())
	}
	var pushResp PushResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pushResp); err != nil {
		t.Fatalf("decode push response: %v", err)
	}
	if !pushResp.Accepted || pushResp.AdvancedTo != commitID {
		t.Fatalf("unexpected push response: %+v", pushResp)
	}

	branchesHandler := s.requirePerm(auth.PermRead, s.handleBranches)
	rec = doJSON(t, branchesHandler, http.MethodGet, "/sync/branches", secret, nil)
	var branches []BranchInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &branches); err != nil {
		t.Fatalf("decode branches: %v", err)
	}
	if len(branches) != 1 || branches[0].Name != "main" || branches[0].HeadCommit != commitID {
		t.Fatalf("unexpected branches: %+v", branches)
	}

	pullHandler := s.requirePerm(auth.PermRead, s.handlePull)
	rec = doJSON(t, pullHandler, http.MethodPost, "/sync/pull", secret, PullRequest{Branch: "main"})
	var pullResp PullResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &pullResp); err != nil {
		t.Fatalf("decode pull: %v", err)
	}
	if len(pullResp.Commits) != 1 || pullResp.Commits[0].ID != commitID || pullResp.Head != commitID {
		t.Fatalf("unexpected pull response: %+v", pullResp)
	}
}

func TestPushRejectsNonFastForwardWithoutForce(t *testing.T) {
	s, repo, _, secret := newTestServer(t)

	treeID, _ := repo.WriteTree(objstore.NewTree(nil))
	base := objstore.Commit{TreeID: treeID, Author: objstore.Now("a", "a@x.com"), Committer: objstore.Now("a", "a@x.com"), Message: "base"}
	baseID, _ := repo.WriteCommit(base)
	if err := repo.CreateBranch("main", baseID); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	divergent := objstore.Commit{TreeID: treeID, Parents: []objstore.Hash{}, Author: objstore.Now("b", "b@x.com"), Committer: objstore.Now("b", "b@x.com"), Message: "divergent root"}
	divergentID, _ := repo.WriteCommit(divergent)

	pushHandler := s.requirePerm(auth.PermWrite, s.handlePush)
	rec := doJSON(t, pushHandler, http.MethodPost, "/sync/push", secret, PushRequest{
		Commits: []NamedCommit{{ID: divergentID, Commit: divergent}},
		Branch:  "main",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 NonFastForward, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLockAcquireReleaseOverHTTP(t *testing.T) {
	s, _, _, secret := newTestServer(t)

	acquireHandler := s.requirePerm(auth.PermWrite, s.handleLockAcquire)
	rec := doJSON(t, acquireHandler, http.MethodPost, "/locks/acquire", secret, LockAcquireRequest{
		Path:   "assets/scene.blend",
		Reason: "development",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("acquire failed: %d: %s", rec.Code, rec.Body.String())
	}

	listHandler := s.requirePerm(auth.PermRead, s.handleLockList)
	rec = doJSON(t, listHandler, http.MethodGet, "/locks/list", secret, nil)
	var locks []lfs.Lock
	if err := json.Unmarshal(rec.Body.Bytes(), &locks); err != nil {
		t.Fatalf("decode locks: %v", err)
	}
	if len(locks) != 1 || locks[0].Path != "assets/scene.blend" {
		t.Fatalf("unexpected locks: %+v", locks)
	}

	releaseHandler := s.requirePerm(auth.PermWrite, s.handleLockRelease)
	rec = doJSON(t, releaseHandler, http.MethodPost, "/locks/release", secret, LockReleaseRequest{Path: "assets/scene.blend"})
	var released map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &released); err != nil {
		t.Fatalf("decode release: %v", err)
	}
	if !released["released"] {
		t.Fatalf("expected released=true, got %+v", released)
	}
}

func TestLFSUploadDownloadIsIdempotent(t *testing.T) {
	s, _, _, secret := newTestServer(t)

	uploadHandler := s.requirePerm(auth.PermLFS, s.handleLFSUpload)
	req := LFSUploadRequest{OID: "deadbeef", ChunkIndex: 0, Data: "aGVsbG8="}
	rec := doJSON(t, uploadHandler, http.MethodPost, "/lfs/upload", secret, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload failed: %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, uploadHandler, http.MethodPost, "/lfs/upload", secret, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat upload failed: %d", rec.Code)
	}

	downloadHandler := s.requirePerm(auth.PermLFS, s.handleLFSDownload)
	rec = doJSON(t, downloadHandler, http.MethodPost, "/lfs/download", secret, LFSDownloadRequest{OID: "deadbeef", ChunkIndex: 0})
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode download: %v", err)
	}
	if resp["data"] != "aGVsbG8=" {
		t.Fatalf("unexpected downloaded data: %+v", resp)
	}
}

func TestPeerRegistryRequiresAdmin(t *testing.T) {
	s, _, store, _ := newTestServer(t)

	readOnly, err := store.IssueToken("viewer", []auth.Permission{auth.PermRead}, 0)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	registryHandler := s.requirePerm(auth.PermAdmin, s.handleRegistry)
	rec := doJSON(t, registryHandler, http.MethodPost, "/registry/peers", readOnly.Secret, map[string]string{"name": "peer-a", "url": "http://peer-a:9000"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin registry write, got %d", rec.Code)
	}
}
