// Command rune-server is the entry point for the sync server: it opens a
// repository, builds its auth/LFS stores, and serves spec.md §4.9's HTTP
// sync protocol over internal/syncserver. Grounded in cmd/vista/main.go's
// flag parsing, environment-variable fallback, signal-driven graceful
// shutdown, and startup banner, trimmed of the color/progress/self-update
// machinery that belonged to the teacher's read-only viewer (spec.md §1
// excludes colorized output and packaging/self-update concerns from the
// core).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rune-vcs/rune/internal/auth"
	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/syncserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	initLogger()

	repoPath := flag.String("repo", getEnv("RUNE_REPO", "."), "Path to the rune repository to serve")
	port := flag.String("port", getEnv("RUNE_PORT", "8080"), "Port to listen on")
	host := flag.String("host", getEnv("RUNE_HOST", ""), "Host to bind to (empty = all interfaces)")
	repoID := flag.String("repo-id", getEnv("RUNE_REPO_ID", ""), "Repository identifier reported by /sync/info")
	showVersion := flag.Bool("version", false, "Show version and exit")
	outputFormat := flag.String("output", "", "Startup output format: json (default: human-readable)")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	portNum, err := strconv.Atoi(*port)
	if err != nil || portNum < 1 || portNum > 65535 {
		slog.Error("invalid -port", "value", *port)
		os.Exit(1)
	}

	repo, err := objstore.Open(*repoPath)
	if err != nil {
		slog.Error("failed to open repository", "path", *repoPath, "err", err)
		os.Exit(1)
	}

	authStore, err := auth.Open(repo.RuneDir)
	if err != nil {
		slog.Error("failed to open auth store", "err", err)
		os.Exit(1)
	}
	defer authStore.Close()

	lfsCfg, err := lfs.LoadConfig(repo.RuneDir)
	if err != nil {
		slog.Error("failed to load lfs config", "err", err)
		os.Exit(1)
	}
	lfsStore := lfs.NewStore(repo.RuneDir)

	if *repoID == "" {
		*repoID = repo.WorkDir
	}

	addr := fmt.Sprintf("%s:%s", *host, *port)
	srv := syncserver.New(syncserver.Config{
		Addr:      addr,
		Repo:      repo,
		Auth:      authStore,
		LFS:       lfsStore,
		LFSConfig: lfsCfg,
		RepoID:    *repoID,
	})

	if *outputFormat == "json" {
		printStartupJSON(addr, *repoPath, *repoID)
	} else {
		printStartupBanner(addr, *repoPath, *repoID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("shutdown initiated, press Ctrl+C again to force exit")
		stop()
		srv.Shutdown()
	}
}

func initLogger() {
	level := slog.LevelInfo
	switch getEnv("RUNE_LOG_LEVEL", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if getEnv("RUNE_LOG_FORMAT", "text") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func printVersion() {
	fmt.Printf("rune-server %s\n", version)
	fmt.Printf("  commit: %s\n", commit)
	fmt.Printf("  built:  %s\n", buildDate)
}

func printStartupBanner(addr, repoPath, repoID string) {
	fmt.Printf("rune-server %s\n", version)
	fmt.Printf("  repo:    %s  (id: %s)\n", repoPath, repoID)
	fmt.Printf("  listen:  http://%s\n", addr)
	fmt.Println("\nPress Ctrl+C to stop.")
}

type startupInfo struct {
	Version string `json:"version"`
	Listen  string `json:"listen"`
	Repo    string `json:"repo"`
	RepoID  string `json:"repo_id"`
}

func printStartupJSON(addr, repoPath, repoID string) {
	data, _ := json.Marshal(startupInfo{Version: version, Listen: "http://" + addr, Repo: repoPath, RepoID: repoID})
	fmt.Println(string(data))
}
