// Package syncserver implements the HTTP sync protocol from spec.md §4.9:
// repo push/pull, LFS chunk upload/download, lock registry endpoints, a
// health probe, and an admin-writable peer naming registry. Grounded
// wholesale in the teacher's internal/server package (handlers, middleware,
// ratelimit, health, watcher), regeneralized from a read-only repo viewer
// to the read/write sync protocol.
package syncserver

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rune-vcs/rune/internal/auth"
	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/objstore"
)

// Config controls how a Server is constructed, following the
// Config+defaults() pattern internal/repomanager/manager.go uses.
type Config struct {
	Addr          string
	Repo          *objstore.Repository
	Auth          *auth.Store
	LFS           *lfs.Store
	LFSConfig     *lfs.Config
	Logger        *slog.Logger
	RepoID        string
	DefaultBranch string
	ProtocolVer   int
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.DefaultBranch == "" {
		c.DefaultBranch = objstore.DefaultBranch
	}
	if c.ProtocolVer == 0 {
		c.ProtocolVer = 1
	}
	return c
}

// Server is the HTTP front end for one repository's sync protocol.
type Server struct {
	cfg        Config
	logger      *slog.Logger
	rateLimiter *rateLimiter
	httpServer  *http.Server
	registry    *peerRegistry
	startedAt   time.Time

	watcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Server ready to be started.
func New(cfg Config) *Server {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		logger:      cfg.Logger,
		rateLimiter: newRateLimiter(100, 200, time.Second),
		registry:    newPeerRegistry(),
		startedAt:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start builds the route table and begins serving, blocking until the
// server exits or hits a fatal error.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	const writeDeadlineDur = 30 * time.Second

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/sync/info", s.rateLimiter.middleware(s.requirePerm(auth.PermRead, s.handleSyncInfo)))
	mux.HandleFunc("/sync/branches", s.rateLimiter.middleware(s.requirePerm(auth.PermRead, s.handleBranches)))
	mux.HandleFunc("/sync/commits/", s.rateLimiter.middleware(s.requirePerm(auth.PermRead, s.handleCommitsSince)))
	mux.HandleFunc("/sync/push", s.rateLimiter.middleware(writeDeadline(writeDeadlineDur, s.requirePerm(auth.PermWrite, s.handlePush))))
	mux.HandleFunc("/sync/pull", s.rateLimiter.middleware(s.requirePerm(auth.PermRead, s.handlePull)))
	mux.HandleFunc("/lfs/upload", s.rateLimiter.middleware(writeDeadline(writeDeadlineDur, s.requirePerm(auth.PermLFS, s.handleLFSUpload))))
	mux.HandleFunc("/lfs/download", s.rateLimiter.middleware(s.requirePerm(auth.PermLFS, s.handleLFSDownload)))
	mux.HandleFunc("/locks/acquire", s.rateLimiter.middleware(s.requirePerm(auth.PermWrite, s.handleLockAcquire)))
	mux.HandleFunc("/locks/release", s.rateLimiter.middleware(s.requirePerm(auth.PermWrite, s.handleLockRelease)))
	mux.HandleFunc("/locks/list", s.rateLimiter.middleware(s.requirePerm(auth.PermRead, s.handleLockList)))
	mux.HandleFunc("/registry/peers", s.rateLimiter.middleware(s.requirePerm(auth.PermAdmin, s.handleRegistry)))

	handler := requestLogger(s.logger, mux)

	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.registry.probeLoop(s.ctx)
	}()

	if err := s.startWatcher(); err != nil {
		s.logger.Warn("refs watcher unavailable", "err", err)
	}

	s.logger.Info("rune sync server starting", "addr", "http://"+s.cfg.Addr, "repo_id", s.cfg.RepoID)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server and its background loops.
func (s *Server) Shutdown() {
	start := time.Now()
	s.logger.Info("sync server shutting down")

	if s.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "err", err)
		}
	}

	s.cancel()
	s.rateLimiter.Close()
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.wg.Wait()

	s.logger.Info("sync server shutdown complete", "elapsed", time.Since(start).Round(time.Millisecond))
}
