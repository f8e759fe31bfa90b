package worktree

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rune-vcs/rune/internal/ignore"
	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// AddLFSAware stages path exactly like Add, except that any file matching
// store/cfg's LFS rules is chunked and replaced by a pointer blob before
// staging, per spec.md §4.7's staging-time interception ("C7 intercepts
// large or pattern-matched files during staging, replacing content with
// pointer records"). A nil store or cfg disables interception entirely.
func AddLFSAware(repo *objstore.Repository, matcher *ignore.Matcher, store *lfs.Store, cfg *lfs.Config, path string) error {
	if store == nil || cfg == nil {
		return Add(repo, matcher, path)
	}

	full, err := hashioResolve(repo, path)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		return rerr.Wrap(rerr.UserInput, rerr.CodeNotFound, err)
	}

	if !info.IsDir() {
		return stageLFSAware(repo, store, cfg, full)
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
		return stageLFSAware(repo, store, cfg, p)
	})
}

func stageLFSAware(repo *objstore.Repository, store *lfs.Store, cfg *lfs.Config, full string) error {
	rel := relPath(repo.WorkDir, full)
	info, err := os.Stat(full)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}

	if !cfg.ShouldTrack(rel, info.Size()) {
		return repo.Stage(rel, content, modeFor(info))
	}

	pointer, err := store.ChunkAndStore(content, uint64(cfg.ChunkSizeBytes))
	if err != nil {
		return err
	}
	return repo.Stage(rel, pointer.Encode(), modeFor(info))
}
