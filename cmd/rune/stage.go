package main

import (
	"fmt"
	"os"

	"github.com/rune-vcs/rune/internal/worktree"
)

func runAdd(gf globalFlags, args []string) int {
	if len(args) == 0 {
		return fatalf("usage: rune add <path>...")
	}
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	for _, path := range args {
		if err := worktree.AddLFSAware(ctx.repo, ctx.matcher, ctx.lfs, ctx.lfsCfg, path); err != nil {
			return fatalf("add %s: %v", path, err)
		}
		logVerbose(gf, "staged %s", path)
	}
	return exitSuccess
}

func runRm(args []string) int {
	cached := false
	var paths []string
	for _, a := range args {
		if a == "--cached" {
			cached = true
			continue
		}
		paths = append(paths, a)
	}
	if len(paths) == 0 {
		return fatalf("usage: rune rm [--cached] <path>...")
	}
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	for _, path := range paths {
		if err := worktree.Remove(ctx.repo, path, cached); err != nil {
			return fatalf("rm %s: %v", path, err)
		}
	}
	return exitSuccess
}

func runMv(args []string) int {
	if len(args) != 2 {
		return fatalf("usage: rune mv <src> <dst>")
	}
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	if err := worktree.Move(ctx.repo, args[0], args[1]); err != nil {
		return fatalf("mv: %v", err)
	}
	return exitSuccess
}

func runStatus(args []string) int {
	porcelain := false
	for _, a := range args {
		if a == "-s" || a == "--porcelain" {
			porcelain = true
		}
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	st, err := worktree.Compute(ctx.repo, ctx.matcher)
	if err != nil {
		return fatalf("status: %v", err)
	}

	if len(st.Files) == 0 {
		if !porcelain {
			fmt.Println("nothing to commit, working tree clean")
		}
		return exitSuccess
	}

	for _, f := range st.Files {
		switch {
		case f.Untracked:
			printStatusLine(porcelain, "??", f.Path)
		case f.IndexStatus != "" && f.WorkStatus != "":
			printStatusLine(porcelain, codeFor(f.IndexStatus)+codeFor(f.WorkStatus), f.Path)
		case f.IndexStatus != "":
			printStatusLine(porcelain, codeFor(f.IndexStatus)+" ", f.Path)
		case f.WorkStatus != "":
			printStatusLine(porcelain, " "+codeFor(f.WorkStatus), f.Path)
		}
	}
	return exitSuccess
}

func codeFor(status string) string {
	switch status {
	case "added":
		return "A"
	case "modified":
		return "M"
	case "deleted":
		return "D"
	default:
		return "?"
	}
}

func printStatusLine(porcelain bool, code, path string) {
	if porcelain {
		fmt.Fprintf(os.Stdout, "%s %s\n", code, path)
		return
	}
	fmt.Printf("  %s %s\n", code, path)
}
