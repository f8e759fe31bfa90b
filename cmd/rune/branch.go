package main

import (
	"fmt"

	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/worktree"
)

func runBranch(args []string) int {
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}

	if len(args) == 0 {
		names, err := ctx.repo.ListBranches()
		if err != nil {
			return fatalf("branch: %v", err)
		}
		head, _ := ctx.repo.Head()
		for _, name := range names {
			marker := "  "
			if !head.Detached && name == head.Branch {
				marker = "* "
			}
			fmt.Println(marker + name)
		}
		return exitSuccess
	}

	if args[0] == "-d" || args[0] == "--delete" {
		if len(args) < 2 {
			return fatalf("usage: rune branch -d <name>")
		}
		if err := ctx.repo.DeleteBranch(args[1]); err != nil {
			return fatalf("branch: %v", err)
		}
		return exitSuccess
	}

	start, err := ctx.repo.CurrentCommit()
	if err != nil {
		return fatalf("branch: %v", err)
	}
	if err := ctx.repo.CreateBranch(args[0], start); err != nil {
		return fatalf("branch: %v", err)
	}
	return exitSuccess
}

func runCheckout(gf globalFlags, args []string) int {
	detach := false
	discard := false
	var target string
	for _, a := range args {
		switch a {
		case "--detach":
			detach = true
		case "--discard":
			discard = true
		default:
			target = a
		}
	}
	if target == "" {
		return fatalf("usage: rune checkout [--detach] [--discard] <branch-or-commit>")
	}

	if discard && !confirm(gf, "discard local changes and switch to "+target+"?") {
		return exitUserErr
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}

	if err := worktree.Checkout(ctx.repo, target, detach, discard); err != nil {
		return fatalf("checkout: %v", err)
	}

	policy := lfs.PolicySmart
	owner, perr := userSignature(ctx.repo)
	if perr == nil {
		store := lfs.NewStore(ctx.repo.RuneDir)
		released, rerr2 := store.ReleaseOnBranchSwitch(owner.Email, policy)
		if rerr2 == nil {
			for _, path := range released {
				logVerbose(gf, "released lock on %s (branch switch)", path)
			}
		}
	}
	return exitSuccess
}

func runMerge(args []string) int {
	if len(args) == 0 {
		return fatalf("usage: rune merge <branch-or-commit>")
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}

	id, err := resolveRef(ctx.repo, args[0])
	if err != nil {
		return fatalf("%v", err)
	}
	if err := ctx.repo.Merge(id); err != nil {
		return fatalf("merge: %v", err)
	}

	head, err := ctx.repo.CurrentCommit()
	if err != nil {
		return fatalf("merge: %v", err)
	}
	c, err := ctx.repo.ReadCommit(head)
	if err != nil {
		return fatalf("merge: %v", err)
	}
	return materializeAndReport(ctx.repo, c.TreeID)
}

func materializeAndReport(repo *objstore.Repository, treeID objstore.Hash) int {
	flat, err := repo.FlattenTree(treeID)
	if err != nil {
		return fatalf("%v", err)
	}
	for path, entry := range flat {
		content, err := repo.ReadObject(entry.ID)
		if err != nil {
			return fatalf("%v", err)
		}
		if err := writeWorktreeFile(repo, path, content, entry.Mode); err != nil {
			return fatalf("%v", err)
		}
	}
	return exitSuccess
}
