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

// Add stages path, which may be a single file or a directory. Directories
// are walked recursively, skipping entries the ignore matcher rejects and
// the repository's own .rune directory. Grounded in gitcore's working-tree
// walk in status.go, generalized from read-only comparison to staging.
func Add(repo *objstore.Repository, matcher *ignore.Matcher, path string) error {
	full, err := hashioResolve(repo, path)
	if err != nil {
		return err
	}

	info, err := os.Stat(full)
	if err != nil {
		return rerr.Wrap(rerr.UserInput, rerr.CodeNotFound, err)
	}

	if !info.IsDir() {
		rel := relPath(repo.WorkDir, full)
		content, rerr2 := os.ReadFile(full)
		if rerr2 != nil {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, rerr2)
		}
		return repo.Stage(rel, content, modeFor(info))
	}

	return filepath.WalkDir(full, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if d.IsDir() {
			if d.Name() == objstore.DotDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel := relPath(repo.WorkDir, p)
		if matcher != nil && matcher.Check(rel, false).Ignored {
			return nil
		}
		content, rerr2 := os.ReadFile(p)
		if rerr2 != nil {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, rerr2)
		}
		info, statErr := d.Info()
		if statErr != nil {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, statErr)
		}
		return repo.Stage(rel, content, modeFor(info))
	})
}

// Move renames a tracked file on disk and in the staging index.
func Move(repo *objstore.Repository, src, dst string) error {
	srcFull, err := hashioResolve(repo, src)
	if err != nil {
		return err
	}
	dstFull, err := hashioResolve(repo, dst)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(srcFull)
	if err != nil {
		return rerr.Wrap(rerr.UserInput, rerr.CodeNotFound, err)
	}
	info, err := os.Stat(srcFull)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	if err := os.MkdirAll(filepath.Dir(dstFull), 0o755); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	if err := os.Rename(srcFull, dstFull); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	if err := repo.StageDeletion(relPath(repo.WorkDir, srcFull)); err != nil {
		return err
	}
	return repo.Stage(relPath(repo.WorkDir, dstFull), content, modeFor(info))
}

// Remove stages path's deletion and, unless cached is true, also deletes it
// from disk.
func Remove(repo *objstore.Repository, path string, cached bool) error {
	full, err := hashioResolve(repo, path)
	if err != nil {
		return err
	}
	rel := relPath(repo.WorkDir, full)

	if !cached {
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
		}
	}
	return repo.StageDeletion(rel)
}

func modeFor(info os.FileInfo) uint32 {
	if info.Mode()&0o111 != 0 {
		return 0o100755
	}
	return 0o100644
}

func hashioResolve(repo *objstore.Repository, path string) (string, error) {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(repo.WorkDir, path)
		if err != nil {
			return "", rerr.New(rerr.UserInput, rerr.CodePathEscapesRoot, path)
		}
		path = rel
	}
	return hashio.ResolveWithinRoot(repo.WorkDir, path)
}
