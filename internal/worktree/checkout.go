package worktree

import (
	"os"
	"path/filepath"

	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// Checkout switches HEAD via repo.Checkout and materializes the resulting
// tree onto disk: every blob in the target tree is written (creating
// parent directories as needed), and every tracked file not present in the
// target tree is removed. Untracked files are left untouched. discard is
// forwarded to repo.Checkout to bypass the dirty-working-tree guard when
// the caller wants to abandon staged changes (spec.md §4.5's checkout
// discard flag). Grounded in gitcore/worktree_diff.go's comparison model,
// generalized from diff reporting to actually rewriting the working tree.
func Checkout(repo *objstore.Repository, branch string, detach, discard bool) error {
	before, err := repo.ReadIndex()
	if err != nil {
		return err
	}
	beforePaths := make(map[string]struct{}, len(before))
	for p := range before {
		beforePaths[p] = struct{}{}
	}
	// Paths unchanged since HEAD are not in the index but are tracked too.
	if head, herr := repo.Head(); herr == nil && !head.CommitID.Empty() {
		c, err := repo.ReadCommit(head.CommitID)
		if err != nil {
			return err
		}
		flat, err := repo.FlattenTree(c.TreeID)
		if err != nil {
			return err
		}
		for p := range flat {
			beforePaths[p] = struct{}{}
		}
	}

	treeID, err := repo.Checkout(branch, detach, discard)
	if err != nil {
		return err
	}

	after, err := repo.FlattenTree(treeID)
	if err != nil {
		return err
	}

	for path := range beforePaths {
		if _, stillPresent := after[path]; stillPresent {
			continue
		}
		full := filepath.Join(repo.WorkDir, filepath.FromSlash(path))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
		}
	}

	for path, entry := range after {
		content, rerr2 := repo.ReadObject(entry.ID)
		if rerr2 != nil {
			return rerr2
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
