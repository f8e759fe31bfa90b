package syncclient

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// trackingBranch is the local name fetched commits are recorded under for a
// given remote and branch, e.g. "remotes/origin/main". Stored as an
// ordinary branch ref (spec.md has no separate remote-tracking-ref concept)
// nested under a directory component, so ListBranches' non-recursive
// directory scan never surfaces it as a checkoutable local branch.
func trackingBranch(remote, branch string) string {
	return "remotes/" + remote + "/" + branch
}

// fetchBranch pulls every commit reachable from remote's branch head that
// repo doesn't already have, writes the commits and their object graph, and
// advances repo's tracking ref for (remote, branch) to the new head.
func fetchBranch(ctx context.Context, repo *objstore.Repository, client *Client, remote, branch string) (objstore.Hash, error) {
	since, _, _ := repo.BranchHead(trackingBranch(remote, branch))

	resp, err := client.pull(ctx, branch, since)
	if err != nil {
		return "", err
	}
	if err := resp.Objects.writeInto(repo); err != nil {
		return "", err
	}
	for _, nc := range resp.Commits {
		if _, err := repo.WriteCommit(nc.Commit); err != nil {
			return "", err
		}
	}

	tracking := trackingBranch(remote, branch)
	if repo.BranchExists(tracking) {
		if err := repo.SetBranchHead(tracking, resp.Head); err != nil {
			return "", err
		}
	} else if !resp.Head.Empty() {
		if err := repo.CreateBranch(tracking, resp.Head); err != nil {
			return "", err
		}
	}
	return resp.Head, nil
}

// reconcileWorktree brings the on-disk tree in line with treeID: every path
// present in before but not in treeID is removed, and every blob in treeID
// is (re)written. Mirrors worktree.Checkout's disk half; duplicated here
// rather than imported because that function drives it from repo.Checkout's
// branch switch, whereas clone/pull drive it from a tree id obtained after
// the ref has already moved (Merge and the initial clone write only advance
// refs and the index, not the files on disk).
func reconcileWorktree(repo *objstore.Repository, before map[string]struct{}, treeID objstore.Hash) error {
	after, err := repo.FlattenTree(treeID)
	if err != nil {
		return err
	}

	for path := range before {
		if _, stillPresent := after[path]; stillPresent {
			continue
		}
		full := filepath.Join(repo.WorkDir, filepath.FromSlash(path))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
		}
	}

	for path, entry := range after {
		content, err := repo.ReadObject(entry.ID)
		if err != nil {
			return err
		}
		full := filepath.Join(repo.WorkDir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
		}
		perm := os.FileMode(0o644)
		if entry.Mode == 0o100755 {
			perm = 0o755
		}
		if err := os.WriteFile(full, content, perm); err != nil {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
		}
	}
	return nil
}

// Clone fetches every branch reachable from url, reconstructs the working
// tree at the default branch's head, and records url as the "origin"
// remote, per spec.md §4.10: "fetch branches, fetch all commits reachable
// from default branch, reconstruct working tree at default head, write
// local refs and remote entry."
func Clone(ctx context.Context, url, dest, authToken string) (*objstore.Repository, error) {
	repo, err := objstore.Init(dest)
	if err != nil {
		return nil, err
	}

	client := NewClient(Remote{URL: url, AuthToken: authToken})
	_, defaultBranch, _, err := client.Info(ctx)
	if err != nil {
		return nil, err
	}

	branches, err := client.Branches(ctx)
	if err != nil {
		return nil, err
	}

	var defaultHead objstore.Hash
	for _, b := range branches {
		head, err := fetchBranch(ctx, repo, client, "origin", b.Name)
		if err != nil {
			return nil, err
		}
		if b.Name == defaultBranch {
			defaultHead = head
		}
		local := b.Name
		if !repo.BranchExists(local) && !head.Empty() {
			if err := repo.CreateBranch(local, head); err != nil {
				return nil, err
			}
		}
	}

	if !defaultHead.Empty() {
		if err := repo.SwitchBranch(defaultBranch); err != nil {
			return nil, err
		}
		c, err := repo.ReadCommit(defaultHead)
		if err != nil {
			return nil, err
		}
		if err := repo.ResetIndexToTree(c.TreeID); err != nil {
			return nil, err
		}
		if err := reconcileWorktree(repo, nil, c.TreeID); err != nil {
			return nil, err
		}
	}

	reg, err := OpenRegistry(repo.RuneDir)
	if err != nil {
		return nil, err
	}
	if err := reg.Add(Remote{Name: "origin", URL: url, AuthToken: authToken, DefaultBranch: defaultBranch}); err != nil {
		return nil, err
	}

	return repo, nil
}

// Fetch updates remote-tracking refs for every branch the remote reports.
// It never touches HEAD or the working tree, per spec.md §4.10.
func Fetch(ctx context.Context, repo *objstore.Repository, remote Remote) error {
	client := NewClient(remote)
	branches, err := client.Branches(ctx)
	if err != nil {
		return err
	}
	for _, b := range branches {
		if _, err := fetchBranch(ctx, repo, client, remote.Name, b.Name); err != nil {
			return err
		}
	}
	return nil
}

// Pull fetches remote's branch, then fast-forwards the current branch if
// possible; a divergent history surfaces the same CodeMergeUnsupported the
// local Merge path does.
func Pull(ctx context.Context, repo *objstore.Repository, remote Remote, branch string) error {
	client := NewClient(remote)
	remoteHead, err := fetchBranch(ctx, repo, client, remote.Name, branch)
	if err != nil {
		return err
	}
	if remoteHead.Empty() {
		return nil
	}

	head, err := repo.Head()
	if err != nil {
		return err
	}
	if head.Detached {
		return rerr.New(rerr.UserInput, rerr.CodeWorkingTreeDirty, "cannot pull onto a detached HEAD")
	}

	before, err := repo.ReadIndex()
	if err != nil {
		return err
	}
	beforePaths := make(map[string]struct{}, len(before))
	for p := range before {
		beforePaths[p] = struct{}{}
	}
	// Paths unchanged since HEAD are not in the index but are tracked too.
	if !head.CommitID.Empty() {
		hc, err := repo.ReadCommit(head.CommitID)
		if err != nil {
			return err
		}
		flat, err := repo.FlattenTree(hc.TreeID)
		if err != nil {
			return err
		}
		for p := range flat {
			beforePaths[p] = struct{}{}
		}
	}

	if err := repo.Merge(remoteHead); err != nil {
		return err
	}

	newHead, err := repo.CurrentCommit()
	if err != nil {
		return err
	}
	if newHead != remoteHead {
		// Already up to date (remoteHead was an ancestor of current); nothing
		// new to reconcile.
		return nil
	}
	c, err := repo.ReadCommit(newHead)
	if err != nil {
		return err
	}
	return reconcileWorktree(repo, beforePaths, c.TreeID)
}

// collectUnknownCommits walks backward from local branch head, stopping at
// remoteHead (exclusive), so Push sends only what the remote doesn't have.
func collectUnknownCommits(repo *objstore.Repository, localHead, remoteHead objstore.Hash) ([]namedCommit, error) {
	var out []namedCommit
	seen := map[objstore.Hash]bool{}
	queue := []objstore.Hash{localHead}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id.Empty() || seen[id] || id == remoteHead {
			continue
		}
		seen[id] = true
		c, err := repo.ReadCommit(id)
		if err != nil {
			return nil, err
		}
		out = append(out, namedCommit{ID: id, Commit: c})
		queue = append(queue, c.Parents...)
	}
	return out, nil
}

// Push sends every commit on repo's local branch that the remote doesn't
// already have. Fail modes mirror the server: a non-fast-forward push
// without force returns the same CodeNonFastForward the server would,
// detected locally first so the client doesn't pay for a round trip it
// knows will be rejected.
func Push(ctx context.Context, repo *objstore.Repository, remote Remote, branch string, force bool) (objstore.Hash, error) {
	client := NewClient(remote)

	localHead, ok, err := repo.BranchHead(branch)
	if err != nil {
		return "", err
	}
	if !ok || localHead.Empty() {
		return "", rerr.New(rerr.UserInput, rerr.CodeBranchNotFound, branch)
	}

	remoteBranches, err := client.Branches(ctx)
	if err != nil {
		return "", err
	}
	var remoteHead objstore.Hash
	for _, b := range remoteBranches {
		if b.Name == branch {
			remoteHead = b.HeadCommit
		}
	}

	if !remoteHead.Empty() && !force {
		ancestor, err := repo.IsAncestor(remoteHead, localHead)
		if err != nil {
			return "", err
		}
		if !ancestor {
			return "", rerr.New(rerr.State, rerr.CodeNonFastForward, branch)
		}
	}

	commits, err := collectUnknownCommits(repo, localHead, remoteHead)
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return localHead, nil
	}

	objects, err := collectObjectPayload(repo, commits)
	if err != nil {
		return "", err
	}

	resp, err := client.push(ctx, branch, commits, objects, force)
	if err != nil {
		return "", err
	}

	if _, err := fetchBranch(ctx, repo, client, remote.Name, branch); err != nil {
		return "", err
	}
	return resp.AdvancedTo, nil
}
