package syncserver

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/rune-vcs/rune/internal/objstore"
)

// startWatcher watches the repository's refs/heads directory and logs
// branch ref changes at debug level, mirroring internal/server/watcher.go's
// approach to refs/heads. /sync/branches does not depend on it: it reads
// the refs from disk on every request.
// A nil cfg.Repo (server constructed without a live repo, e.g. in tests)
// disables the watcher.
func (s *Server) startWatcher() error {
	if s.cfg.Repo == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	refsDir := filepath.Join(s.cfg.Repo.RuneDir, objstore.RefsDir, objstore.HeadsDir)
	if err := watcher.Add(refsDir); err != nil {
		s.logger.Warn("failed to watch refs directory", "dir", refsDir, "err", err)
	}

	s.wg.Add(1)
	go s.watchLoop()
	return nil
}

func (s *Server) watchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			s.logger.Debug("ref change detected", "file", filepath.Base(event.Name), "op", event.Op.String())
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("watcher error", "err", err)
		}
	}
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	return strings.HasSuffix(event.Name, ".lock")
}
