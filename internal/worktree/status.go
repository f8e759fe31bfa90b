// Package worktree implements the working-tree-facing operations from
// spec.md §4.6: status, add/move/remove, checkout, blame, and author
// identity normalization (stash lives in internal/objstore). It sits on top of internal/objstore (the content-addressed
// store) and internal/ignore (the smart-ignore matcher), translating
// between on-disk files and staged blobs. Grounded in gitcore/status.go's
// three-way comparison (HEAD tree vs index vs disk) and worktree_diff.go.
package worktree

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rune-vcs/rune/internal/hashio"
	"github.com/rune-vcs/rune/internal/ignore"
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// EntryStatus is the staged/unstaged classification for one path, mirroring
// gitcore's FileStatus but phrased as one of a closed set of kinds instead
// of two separate freeform strings.
type EntryStatus struct {
	Path        string
	IndexStatus string // "added", "modified", "deleted", or ""
	WorkStatus  string // "modified", "deleted", or ""
	Untracked   bool
}

// Status is the full working-tree status report.
type Status struct {
	Files []EntryStatus
}

// Compute walks HEAD's tree, the staging index, and the on-disk working
// tree to classify every path that differs from any of the other two,
// exactly as gitcore.ComputeWorkingTreeStatus does for a read-only git
// repository, generalized to rune's object store and with untracked files
// filtered through the smart-ignore matcher (spec.md §4.4's stated purpose:
// "so status and add do not surface ignored paths").
func Compute(repo *objstore.Repository, matcher *ignore.Matcher) (*Status, error) {
	headTree := map[string]objstore.TreeEntry{}
	if head, err := repo.Head(); err == nil && !head.CommitID.Empty() {
		c, cerr := repo.ReadCommit(head.CommitID)
		if cerr != nil {
			return nil, cerr
		}
		flat, ferr := repo.FlattenTree(c.TreeID)
		if ferr != nil {
			return nil, ferr
		}
		headTree = flat
	}

	idx, err := repo.ReadIndex()
	if err != nil {
		return nil, err
	}
	// The index holds only changes since HEAD; a path it does not list is
	// unchanged from HEAD.
	for path, e := range headTree {
		if _, staged := idx[path]; !staged {
			idx[path] = objstore.IndexEntry{Path: path, BlobID: e.ID, Mode: e.Mode}
		}
	}

	results := map[string]*EntryStatus{}

	for path, entry := range idx {
		if entry.Deleted {
			continue
		}
		headEntry, inHead := headTree[path]
		switch {
		case !inHead:
			results[path] = &EntryStatus{Path: path, IndexStatus: "added"}
		case headEntry.ID != entry.BlobID:
			results[path] = &EntryStatus{Path: path, IndexStatus: "modified"}
		}
	}
	for path := range headTree {
		e, staged := idx[path]
		if !staged || e.Deleted {
			results[path] = &EntryStatus{Path: path, IndexStatus: "deleted"}
		}
	}

	for path, entry := range idx {
		if entry.Deleted {
			continue
		}
		diskPath := filepath.Join(repo.WorkDir, filepath.FromSlash(path))
		content, rerr2 := os.ReadFile(diskPath)
		if rerr2 != nil {
			if os.IsNotExist(rerr2) {
				fsEntry := entryFor(results, path)
				fsEntry.WorkStatus = "deleted"
				continue
			}
			return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, rerr2)
		}
		if hashio.Sum(content) != entry.BlobID {
			fsEntry := entryFor(results, path)
			fsEntry.WorkStatus = "modified"
		}
	}

	trackedPaths := make(map[string]struct{}, len(idx))
	for path := range idx {
		trackedPaths[path] = struct{}{}
	}

	walkErr := filepath.WalkDir(repo.WorkDir, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if d.IsDir() && d.Name() == objstore.DotDir {
			return filepath.SkipDir
		}
		if d.IsDir() {
			if matcher != nil && matcher.Check(relPath(repo.WorkDir, full), true).Ignored {
				return filepath.SkipDir
			}
			return nil
		}

		rel := relPath(repo.WorkDir, full)
		if _, tracked := trackedPaths[rel]; tracked {
			return nil
		}
		if matcher != nil && matcher.Check(rel, false).Ignored {
			return nil
		}
		results[rel] = &EntryStatus{Path: rel, Untracked: true}
		return nil
	})
	if walkErr != nil {
		return nil, rerr.Wrap(rerr.Internal, rerr.CodeIoError, walkErr)
	}

	status := &Status{Files: make([]EntryStatus, 0, len(results))}
	for _, fs := range results {
		status.Files = append(status.Files, *fs)
	}
	return status, nil
}

func entryFor(m map[string]*EntryStatus, path string) *EntryStatus {
	if e, ok := m[path]; ok {
		return e
	}
	e := &EntryStatus{Path: path}
	m[path] = e
	return e
}

func relPath(root, full string) string {
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return full
	}
	return filepath.ToSlash(rel)
}
