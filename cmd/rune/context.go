package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rune-vcs/rune/internal/ignore"
	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/rerr"
)

// configDirEnv names the environment variable that, if set, overrides
// where rune looks for user-global ignore patterns (spec.md §6: "a single
// optional variable naming an override configuration directory").
const configDirEnv = "RUNE_CONFIG_DIR"

// authTokenEnv names the environment variable carrying a default bearer
// token for sync-client operations when a remote has none of its own
// recorded (spec.md §6: "a single optional variable carrying a default
// auth token for the sync client").
const authTokenEnv = "RUNE_AUTH_TOKEN"

// repoContext bundles the handles most commands need: the open repository,
// its ignore matcher, and its LFS store/config.
type repoContext struct {
	repo    *objstore.Repository
	matcher *ignore.Matcher
	lfs     *lfs.Store
	lfsCfg  *lfs.Config
}

func openRepoContext() (*repoContext, error) {
	repo, err := objstore.Open(".")
	if err != nil {
		return nil, err
	}

	userGlobal := ""
	if dir := os.Getenv(configDirEnv); dir != "" {
		userGlobal = filepath.Join(dir, "ignore")
	}
	matcher, _, err := ignore.BuildMatcher(repo.WorkDir, userGlobal)
	if err != nil {
		return nil, err
	}

	cfg, err := lfs.LoadConfig(repo.RuneDir)
	if err != nil {
		return nil, err
	}

	return &repoContext{
		repo:    repo,
		matcher: matcher,
		lfs:     lfs.NewStore(repo.RuneDir),
		lfsCfg:  cfg,
	}, nil
}

// userSignature builds a Signature from .rune/config, falling back to the
// host's "unknown" identity when the repository has none set.
func userSignature(repo *objstore.Repository) (objstore.Signature, error) {
	cfg, err := repo.ReadConfig()
	if err != nil {
		return objstore.Signature{}, err
	}
	name, email := cfg.UserName, cfg.UserEmail
	if name == "" {
		name = "unknown"
	}
	if email == "" {
		email = "unknown@localhost"
	}
	return objstore.Now(name, email), nil
}

// writeWorktreeFile writes content onto disk at path (relative to repo's
// work dir), creating parent directories and deriving file mode from the
// tree entry's stored mode bits.
func writeWorktreeFile(repo *objstore.Repository, path string, content []byte, mode uint32) error {
	full := filepath.Join(repo.WorkDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	perm := os.FileMode(0o644)
	if mode == 0o100755 {
		perm = 0o755
	}
	if err := os.WriteFile(full, content, perm); err != nil {
		return rerr.Wrap(rerr.Internal, rerr.CodeIoError, err)
	}
	return nil
}

func fatalf(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "rune: "+format+"\n", args...)
	return exitUserErr
}
