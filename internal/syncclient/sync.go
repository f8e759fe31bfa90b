package syncclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// Wire types below mirror internal/syncserver's request/response shapes
// (spec.md §4.9). They are declared independently rather than imported so
// the client has no compile-time dependency on the server package — the
// two talk only over HTTP/JSON, exactly as two real processes would.

type syncInfo struct {
	RepoID          string `json:"repo_id"`
	DefaultBranch   string `json:"default_branch"`
	ProtocolVersion int    `json:"protocol_version"`
}

type branchInfo struct {
	Name       string        `json:"name"`
	HeadCommit objstore.Hash `json:"head_commit"`
}

type namedCommit struct {
	ID objstore.Hash `json:"id"`
	objstore.Commit
}

type objectPayload map[objstore.Hash]string

func (p objectPayload) writeInto(repo *objstore.Repository) error {
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

func collectObjectPayload(repo *objstore.Repository, commits []namedCommit) (objectPayload, error) {
	out := objectPayload{}
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

type pushRequest struct {
	Commits []namedCommit `json:"commits"`
	Branch  string        `json:"branch"`
	Force   bool          `json:"force"`
	Objects objectPayload `json:"objects,omitempty"`
}

type pushResponse struct {
	Accepted   bool          `json:"accepted"`
	AdvancedTo objstore.Hash `json:"advanced_to"`
}

type pullRequest struct {
	Branch      string        `json:"branch"`
	SinceCommit objstore.Hash `json:"since_commit,omitempty"`
}

type pullResponse struct {
	Commits []namedCommit `json:"commits"`
	Head    objstore.Hash `json:"head"`
	Objects objectPayload `json:"objects,omitempty"`
}

type lockAcquireRequest struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	TTLS   int64  `json:"ttl_s,omitempty"`
}

type lockReleaseRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force,omitempty"`
}

// Info fetches GET /sync/info.
func (c *Client) Info(ctx context.Context) (repoID, defaultBranch string, protocolVersion int, err error) {
	var resp syncInfo
	if err := c.doJSON(ctx, http.MethodGet, "/sync/info", nil, &resp); err != nil {
		return "", "", 0, err
	}
	return resp.RepoID, resp.DefaultBranch, resp.ProtocolVersion, nil
}

// Branches fetches GET /sync/branches.
func (c *Client) Branches(ctx context.Context) ([]branchInfo, error) {
	var resp []branchInfo
	if err := c.idempotent(ctx, http.MethodGet, "/sync/branches", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// commitsSince fetches GET /sync/commits/:since?branch=, newest-first.
func (c *Client) commitsSince(ctx context.Context, branch string, since objstore.Hash) ([]namedCommit, error) {
	path := fmt.Sprintf("/sync/commits/%s?branch=%s", since, branch)
	var resp []namedCommit
	if err := c.idempotent(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// pull performs POST /sync/pull, returning commits roots-first plus the
// object graph they depend on.
func (c *Client) pull(ctx context.Context, branch string, since objstore.Hash) (pullResponse, error) {
	var resp pullResponse
	req := pullRequest{Branch: branch, SinceCommit: since}
	if err := c.idempotent(ctx, http.MethodPost, "/sync/pull", req, &resp); err != nil {
		return pullResponse{}, err
	}
	return resp, nil
}

// push performs POST /sync/push with the given commits and their object
// graph. Not retried automatically: a failed push must re-check the
// remote's head before a caller decides to retry, per spec.md §5.
func (c *Client) push(ctx context.Context, branch string, commits []namedCommit, objects objectPayload, force bool) (pushResponse, error) {
	var resp pushResponse
	req := pushRequest{Commits: commits, Branch: branch, Force: force, Objects: objects}
	if err := c.doJSON(ctx, http.MethodPost, "/sync/push", req, &resp); err != nil {
		return pushResponse{}, err
	}
	return resp, nil
}

// UploadChunk performs POST /lfs/upload for one content-addressed chunk.
// Idempotent: the data is sent on every call, and a chunk the remote
// already holds is reported as stored without being written again.
func (c *Client) UploadChunk(ctx context.Context, oid hashio.Hash, index int, data []byte) error {
	req := map[string]any{
		"oid":         oid,
		"chunk_index": index,
		"data":        base64.StdEncoding.EncodeToString(data),
	}
	var resp map[string]bool
	return c.idempotent(ctx, http.MethodPost, "/lfs/upload", req, &resp)
}

// DownloadChunk performs POST /lfs/download and returns the base64-decoded
// bytes. It does not hash them or compare them against any chunk id.
func (c *Client) DownloadChunk(ctx context.Context, oid hashio.Hash, index int) ([]byte, error) {
	req := map[string]any{"oid": oid, "chunk_index": index}
	var resp map[string]string
	if err := c.idempotent(ctx, http.MethodPost, "/lfs/download", req, &resp); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(resp["data"])
	if err != nil {
		return nil, rerr.Wrap(rerr.Integrity, rerr.CodeDecodeError, err)
	}
	return data, nil
}

// AcquireLock performs POST /locks/acquire.
func (c *Client) AcquireLock(ctx context.Context, path string, reason lfs.Reason, ttlSeconds int64) (lfs.Lock, error) {
	req := lockAcquireRequest{Path: path, Reason: string(reason), TTLS: ttlSeconds}
	var resp map[string]lfs.Lock
	if err := c.doJSON(ctx, http.MethodPost, "/locks/acquire", req, &resp); err != nil {
		return lfs.Lock{}, err
	}
	return resp["lock"], nil
}

// ReleaseLock performs POST /locks/release.
func (c *Client) ReleaseLock(ctx context.Context, path string, force bool) (bool, error) {
	req := lockReleaseRequest{Path: path, Force: force}
	var resp map[string]bool
	if err := c.doJSON(ctx, http.MethodPost, "/locks/release", req, &resp); err != nil {
		return false, err
	}
	return resp["released"], nil
}

// ListLocks performs GET /locks/list.
func (c *Client) ListLocks(ctx context.Context) ([]lfs.Lock, error) {
	var resp []lfs.Lock
	if err := c.idempotent(ctx, http.MethodGet, "/locks/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
