package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rune-vcs/rune/internal/objstore"
)

func runCommit(args []string) int {
	var message string
	for i := 0; i < len(args); i++ {
		if args[i] == "-m" && i+1 < len(args) {
			message = args[i+1]
			i++
		}
	}
	if message == "" {
		return fatalf("usage: rune commit -m <message>")
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	sig, err := userSignature(ctx.repo)
	if err != nil {
		return fatalf("%v", err)
	}

	id, err := ctx.repo.Commit(sig, sig, message)
	if err != nil {
		return fatalf("commit: %v", err)
	}
	fmt.Printf("[%s] %s\n", id.Short(), message)
	return exitSuccess
}

func runLog(args []string) int {
	oneline := false
	count := 0
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--oneline":
			oneline = true
		case "-n":
			if i+1 < len(args) {
				count, _ = strconv.Atoi(args[i+1])
				i++
			}
		}
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}

	id, err := ctx.repo.CurrentCommit()
	if err != nil {
		fmt.Println("no commits yet")
		return exitSuccess
	}

	shown := 0
	for !id.Empty() {
		if count > 0 && shown >= count {
			break
		}
		c, err := ctx.repo.ReadCommit(id)
		if err != nil {
			return fatalf("log: %v", err)
		}
		printCommit(id, c, oneline)
		shown++
		if len(c.Parents) == 0 {
			break
		}
		id = c.Parents[0]
	}
	return exitSuccess
}

func printCommit(id objstore.Hash, c objstore.Commit, oneline bool) {
	if oneline {
		fmt.Printf("%s %s\n", id.Short(), firstLineOf(c.Message))
		return
	}
	fmt.Printf("commit %s\n", id)
	fmt.Printf("Author: %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Printf("Date:   %s\n\n", time.Unix(c.Author.Timestamp, 0).UTC().Format(time.RFC3339))
	fmt.Printf("    %s\n\n", c.Message)
}

func firstLineOf(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func runReset(gf globalFlags, args []string) int {
	hard := false
	var target string
	for _, a := range args {
		if a == "--hard" {
			hard = true
			continue
		}
		target = a
	}

	if hard && !confirm(gf, "discard the working tree's staged changes?") {
		return exitUserErr
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}

	id, err := resolveRef(ctx.repo, target)
	if err != nil {
		return fatalf("%v", err)
	}
	if err := ctx.repo.Reset(id, hard); err != nil {
		return fatalf("reset: %v", err)
	}
	return exitSuccess
}

// resolveRef resolves ref as either a branch name or a raw commit id,
// defaulting to the current commit when empty.
func resolveRef(repo *objstore.Repository, ref string) (objstore.Hash, error) {
	if ref == "" {
		return repo.CurrentCommit()
	}
	if head, ok, err := repo.BranchHead(ref); err == nil && ok {
		return head, nil
	}
	return objstore.Hash(ref), nil
}

func runStash(args []string) int {
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}

	sub := "push"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "push":
		message := "WIP"
		if len(args) > 1 {
			message = args[1]
		}
		entry, err := ctx.repo.StashPush(message)
		if err != nil {
			return fatalf("stash: %v", err)
		}
		fmt.Printf("saved stash: %s\n", entry.Message)
	case "pop", "apply":
		entry, err := ctx.repo.StashApply()
		if err != nil {
			return fatalf("stash: %v", err)
		}
		if sub == "pop" {
			if err := ctx.repo.StashDrop(); err != nil {
				return fatalf("stash: %v", err)
			}
		}
		fmt.Printf("restored stash: %s\n", entry.Message)
	case "list":
		list, err := ctx.repo.ReadStashes()
		if err != nil {
			return fatalf("stash: %v", err)
		}
		for i := len(list) - 1; i >= 0; i-- {
			fmt.Printf("stash@{%d}: %s\n", len(list)-1-i, list[i].Message)
		}
	case "drop":
		if err := ctx.repo.StashDrop(); err != nil {
			return fatalf("stash: %v", err)
		}
	default:
		return fatalf("unknown stash subcommand %q", sub)
	}
	return exitSuccess
}
