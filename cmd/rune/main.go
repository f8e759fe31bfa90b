// Command rune is the CLI front end over the core VCS engine: a thin
// dispatcher mapping subcommands onto internal/objstore, internal/worktree,
// internal/lfs, and internal/syncclient calls (spec.md §6: "the CLI is a
// thin wrapper ... not specified here"). Grounded in cmd/gitcli/main.go's
// registration style, generalized from a read-only repository viewer to a
// full init/add/commit/branch/merge/sync front end.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rune-vcs/rune/internal/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(exitSuccess)
		}
	}

	app := cli.NewApp("rune", version)
	app.Stderr = os.Stderr

	app.Register(&cli.Command{Name: "init", Summary: "Create an empty repository", Run: runInit})
	app.Register(&cli.Command{Name: "clone", Summary: "Clone a remote repository", NeedsRepo: false, Run: runClone})
	app.Register(&cli.Command{Name: "add", Summary: "Stage a path", NeedsRepo: true, Run: func(a []string) int { return runAdd(gf, a) }})
	app.Register(&cli.Command{Name: "rm", Summary: "Remove a tracked path", NeedsRepo: true, Run: runRm})
	app.Register(&cli.Command{Name: "mv", Summary: "Rename a tracked path", NeedsRepo: true, Run: runMv})
	app.Register(&cli.Command{Name: "status", Summary: "Show working tree status", NeedsRepo: true, Run: runStatus})
	app.Register(&cli.Command{Name: "commit", Summary: "Record a commit from the staging index", NeedsRepo: true, Run: runCommit})
	app.Register(&cli.Command{Name: "log", Summary: "Show commit history", NeedsRepo: true, Run: runLog})
	app.Register(&cli.Command{Name: "reset", Summary: "Move the current branch to another commit", NeedsRepo: true, Run: func(a []string) int { return runReset(gf, a) }})
	app.Register(&cli.Command{Name: "stash", Summary: "Stash or restore staged changes", NeedsRepo: true, Run: runStash})
	app.Register(&cli.Command{Name: "branch", Summary: "List, create, or delete branches", NeedsRepo: true, Run: runBranch})
	app.Register(&cli.Command{Name: "checkout", Summary: "Switch branches or detach HEAD", NeedsRepo: true, Run: func(a []string) int { return runCheckout(gf, a) }})
	app.Register(&cli.Command{Name: "merge", Summary: "Merge another branch or commit", NeedsRepo: true, Run: runMerge})
	app.Register(&cli.Command{Name: "remote", Summary: "Manage remote entries", NeedsRepo: true, Run: runRemote})
	app.Register(&cli.Command{Name: "fetch", Summary: "Update remote-tracking refs", NeedsRepo: true, Run: runFetch})
	app.Register(&cli.Command{Name: "pull", Summary: "Fetch and fast-forward the current branch", NeedsRepo: true, Run: runPull})
	app.Register(&cli.Command{Name: "push", Summary: "Send local commits to a remote", NeedsRepo: true, Run: func(a []string) int { return runPush(gf, a) }})
	app.Register(&cli.Command{Name: "track", Summary: "Add an LFS tracking pattern", NeedsRepo: true, Run: runTrack})
	app.Register(&cli.Command{Name: "lock", Summary: "Acquire an exclusive path lock", NeedsRepo: true, Run: runLock})
	app.Register(&cli.Command{Name: "unlock", Summary: "Release a path lock", NeedsRepo: true, Run: runUnlock})
	app.Register(&cli.Command{Name: "locks", Summary: "List active path locks", NeedsRepo: true, Run: runLocks})
	app.Register(&cli.Command{Name: "version", Summary: "Show version information", Run: func([]string) int { printVersion(); return exitSuccess }})

	os.Exit(app.Run(args))
}

func printVersion() {
	fmt.Printf("rune %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
