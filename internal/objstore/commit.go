package objstore

import (
	"sort"
	"strings"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/rerr"
)

// treeNode is an in-memory directory node used while assembling a commit's
// tree from the flat staging index.
type treeNode struct {
	blobs map[string]IndexEntry
	dirs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{blobs: map[string]IndexEntry{}, dirs: map[string]*treeNode{}}
}

func (n *treeNode) insert(parts []string, e IndexEntry) {
	if len(parts) == 1 {
		n.blobs[parts[0]] = e
		return
	}
	child, ok := n.dirs[parts[0]]
	if !ok {
		child = newTreeNode()
		n.dirs[parts[0]] = child
	}
	child.insert(parts[1:], e)
}

func (r *Repository) write(n *treeNode) (Hash, error) {
	var entries []TreeEntry

	for name, e := range n.blobs {
		entries = append(entries, TreeEntry{Name: name, Kind: KindBlob, ID: e.BlobID, Mode: e.Mode})
	}
	for name, child := range n.dirs {
		id, err := r.write(child)
		if err != nil {
			return "", err
		}
		entries = append(entries, TreeEntry{Name: name, Kind: KindTree, ID: id, Mode: 0o040000})
	}

	return r.WriteTree(NewTree(entries))
}

// buildTreeFromIndex assembles a nested Tree from the staging index's flat
// path->entry map, writing every subtree and returning the root tree id.
// Entries marked Deleted are skipped (spec.md: staged deletions omit the
// path from the next commit's tree).
func (r *Repository) buildTreeFromIndex(idx map[string]IndexEntry) (Hash, error) {
	root := newTreeNode()
	paths := make([]string, 0, len(idx))
	for p := range idx {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		e := idx[p]
		if e.Deleted {
			continue
		}
		root.insert(strings.Split(p, "/"), e)
	}
	return r.write(root)
}

// Commit creates a commit from the current staging index and HEAD's tree
// merged together, advances HEAD, and clears the index. Fails with
// CodeNothingStaged if the index is empty, whether or not there is a
// parent commit (so an empty root commit is disallowed too).
func (r *Repository) Commit(author, committer Signature, message string) (Hash, error) {
	unlock, err := r.lock(defaultLockTimeout)
	if err != nil {
		return "", err
	}
	defer unlock()

	idx, err := r.ReadIndex()
	if err != nil {
		return "", err
	}

	var parents []Hash
	base := map[string]IndexEntry{}
	parentID, err := r.CurrentCommit()
	if err == nil {
		parents = []Hash{parentID}
		parentCommit, cerr := r.ReadCommit(parentID)
		if cerr != nil {
			return "", cerr
		}
		flat, ferr := r.FlattenTree(parentCommit.TreeID)
		if ferr != nil {
			return "", ferr
		}
		for path, e := range flat {
			base[path] = IndexEntry{Path: path, BlobID: e.ID, Mode: e.Mode}
		}
	}

	if len(idx) == 0 {
		return "", rerr.New(rerr.State, rerr.CodeNothingStaged, "")
	}

	for path, e := range idx {
		if e.Deleted {
			delete(base, path)
			continue
		}
		base[path] = e
	}

	treeID, err := r.buildTreeFromIndex(base)
	if err != nil {
		return "", err
	}

	c := Commit{TreeID: treeID, Parents: parents, Author: author, Committer: committer, Message: message}
	commitID, err := r.WriteCommit(c)
	if err != nil {
		return "", err
	}

	if err := r.advanceHead(commitID); err != nil {
		return "", err
	}
	if err := r.ClearIndex(); err != nil {
		return "", err
	}
	return commitID, nil
}

// Reset moves the current branch (or detached HEAD) to targetID. When hard
// is true the staging index is also rewritten to mirror the target tree
// (spec.md: "reset --hard replaces the index and reports the working tree
// as dirty relative to it until checkout is re-run").
func (r *Repository) Reset(targetID Hash, hard bool) error {
	unlock, err := r.lock(defaultLockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	if err := r.advanceHead(targetID); err != nil {
		return err
	}
	if hard {
		c, err := r.ReadCommit(targetID)
		if err != nil {
			return err
		}
		return r.ResetIndexToTree(c.TreeID)
	}
	return nil
}

// IsAncestor reports whether ancestor is reachable by walking first-parent
// and merge-parent links from descendant, inclusive of descendant itself.
func (r *Repository) IsAncestor(ancestor, descendant Hash) (bool, error) {
	seen := map[Hash]bool{}
	queue := []Hash{descendant}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == ancestor {
			return true, nil
		}
		if seen[cur] || cur.Empty() {
			continue
		}
		seen[cur] = true
		c, err := r.ReadCommit(cur)
		if err != nil {
			return false, err
		}
		queue = append(queue, c.Parents...)
	}
	return false, nil
}

// FastForwardMerge advances the current branch to targetID if and only if
// the current commit is an ancestor of targetID. Returns CodeNonFastForward
// otherwise, leaving the repository untouched.
func (r *Repository) FastForwardMerge(targetID Hash) error {
	current, err := r.CurrentCommit()
	if err != nil {
		return err
	}
	ok, err := r.IsAncestor(current, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return rerr.New(rerr.State, rerr.CodeNonFastForward, string(targetID))
	}
	return r.Reset(targetID, true)
}

// Merge attempts to merge otherID into the current branch. A fast-forward is
// performed when possible; any divergent history otherwise returns
// CodeMergeUnsupported rather than attempting an automatic three-way content
// merge, matching the experimental/unsupported status spec.md §4.5 assigns
// to non-fast-forward merges in this release.
func (r *Repository) Merge(otherID Hash) error {
	current, err := r.CurrentCommit()
	if err != nil {
		return err
	}
	if ok, err := r.IsAncestor(current, otherID); err != nil {
		return err
	} else if ok {
		return r.Reset(otherID, true)
	}
	if ok, err := r.IsAncestor(otherID, current); err != nil {
		return err
	} else if ok {
		return nil // already up to date
	}
	return rerr.New(rerr.State, rerr.CodeMergeUnsupported, string(otherID))
}

// indexDirty reports whether the staging index differs from headTreeID's
// flattened entries - any added, modified, or deleted path relative to the
// tree currently checked out. A path the index does not list counts as
// unchanged from HEAD, so neither the empty index Commit leaves behind nor
// the full index ResetIndexToTree leaves after a checkout is dirty. Mirrors
// the index-vs-HEAD half of internal/worktree/status.go's comparison.
func (r *Repository) indexDirty(headTreeID Hash) (bool, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return false, err
	}
	headTree, err := r.FlattenTree(headTreeID)
	if err != nil {
		return false, err
	}
	for path, e := range headTree {
		if _, staged := idx[path]; !staged {
			idx[path] = IndexEntry{Path: path, BlobID: e.ID, Mode: e.Mode}
		}
	}
	if len(idx) != len(headTree) {
		return true, nil
	}
	for path, e := range idx {
		if e.Deleted {
			return true, nil
		}
		he, ok := headTree[path]
		if !ok || he.ID != e.BlobID || he.Mode != e.Mode {
			return true, nil
		}
	}
	return false, nil
}

// Checkout moves HEAD to branch (or, if detach is true, directly to a
// commit id parsed from branch) and resets the index and is expected to be
// followed by the caller (internal/worktree) materializing files from the
// resulting tree. Fails with CodeWorkingTreeDirty if the index has staged
// changes relative to the current HEAD tree, unless discard is true, in
// which case those changes are abandoned (spec.md: "unstaged local changes
// cause WorkingTreeDirty unless caller passes a discard flag").
func (r *Repository) Checkout(branch string, detach, discard bool) (Hash, error) {
	unlock, err := r.lock(defaultLockTimeout)
	if err != nil {
		return "", err
	}
	defer unlock()

	if !discard {
		var headTreeID Hash
		if head, herr := r.Head(); herr == nil && !head.CommitID.Empty() {
			c, cerr := r.ReadCommit(head.CommitID)
			if cerr != nil {
				return "", cerr
			}
			headTreeID = c.TreeID
		}
		dirty, derr := r.indexDirty(headTreeID)
		if derr != nil {
			return "", derr
		}
		if dirty {
			return "", rerr.New(rerr.State, rerr.CodeWorkingTreeDirty, branch)
		}
	}

	if detach {
		id, perr := hashio.ParseHash(branch)
		if perr != nil {
			return "", perr
		}
		if err := r.DetachHead(id); err != nil {
			return "", err
		}
		c, err := r.ReadCommit(id)
		if err != nil {
			return "", err
		}
		return c.TreeID, r.ResetIndexToTree(c.TreeID)
	}

	if err := r.SwitchBranch(branch); err != nil {
		return "", err
	}
	head, err := r.Head()
	if err != nil {
		return "", err
	}
	if head.CommitID.Empty() {
		return "", nil
	}
	c, err := r.ReadCommit(head.CommitID)
	if err != nil {
		return "", err
	}
	return c.TreeID, r.ResetIndexToTree(c.TreeID)
}
