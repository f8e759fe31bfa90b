package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rune-vcs/rune/internal/syncclient"
)

func runRemote(args []string) int {
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	reg, err := syncclient.OpenRegistry(ctx.repo.RuneDir)
	if err != nil {
		return fatalf("%v", err)
	}

	if len(args) == 0 {
		for _, r := range reg.List() {
			fmt.Printf("%s\t%s\n", r.Name, r.URL)
		}
		return exitSuccess
	}

	switch args[0] {
	case "add":
		if len(args) < 3 {
			return fatalf("usage: rune remote add <name> <url>")
		}
		r := syncclient.Remote{Name: args[1], URL: args[2], AuthToken: os.Getenv(authTokenEnv)}
		if err := reg.Add(r); err != nil {
			return fatalf("remote: %v", err)
		}
	case "remove", "rm":
		if len(args) < 2 {
			return fatalf("usage: rune remote remove <name>")
		}
		if err := reg.Remove(args[1]); err != nil {
			return fatalf("remote: %v", err)
		}
	default:
		return fatalf("unknown remote subcommand %q", args[0])
	}
	return exitSuccess
}

func runFetch(args []string) int {
	name := "origin"
	if len(args) > 0 {
		name = args[0]
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	reg, err := syncclient.OpenRegistry(ctx.repo.RuneDir)
	if err != nil {
		return fatalf("%v", err)
	}
	remote, ok := reg.Get(name)
	if !ok {
		return fatalf("unknown remote %q", name)
	}

	if err := syncclient.Fetch(context.Background(), ctx.repo, remote); err != nil {
		fmt.Fprintf(os.Stderr, "rune: %v\n", err)
		return exitCodeFor(err)
	}
	return exitSuccess
}

func runPull(args []string) int {
	name := "origin"
	if len(args) > 0 {
		name = args[0]
	}
	branch := ""
	if len(args) > 1 {
		branch = args[1]
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	reg, err := syncclient.OpenRegistry(ctx.repo.RuneDir)
	if err != nil {
		return fatalf("%v", err)
	}
	remote, ok := reg.Get(name)
	if !ok {
		return fatalf("unknown remote %q", name)
	}
	if branch == "" {
		branch = remote.DefaultBranch
	}
	if branch == "" {
		head, _ := ctx.repo.Head()
		branch = head.Branch
	}

	if err := syncclient.Pull(context.Background(), ctx.repo, remote, branch); err != nil {
		fmt.Fprintf(os.Stderr, "rune: %v\n", err)
		return exitCodeFor(err)
	}
	return exitSuccess
}

func runPush(gf globalFlags, args []string) int {
	force := false
	var positional []string
	for _, a := range args {
		if a == "--force" || a == "-f" {
			force = true
			continue
		}
		positional = append(positional, a)
	}

	if force && !confirm(gf, "force-push and possibly overwrite remote history?") {
		return exitUserErr
	}

	name := "origin"
	if len(positional) > 0 {
		name = positional[0]
	}
	branch := ""
	if len(positional) > 1 {
		branch = positional[1]
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	reg, err := syncclient.OpenRegistry(ctx.repo.RuneDir)
	if err != nil {
		return fatalf("%v", err)
	}
	remote, ok := reg.Get(name)
	if !ok {
		return fatalf("unknown remote %q", name)
	}
	if branch == "" {
		head, herr := ctx.repo.Head()
		if herr != nil {
			return fatalf("%v", herr)
		}
		branch = head.Branch
	}

	newHead, err := syncclient.Push(context.Background(), ctx.repo, remote, branch, force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rune: %v\n", err)
		return exitCodeFor(err)
	}
	fmt.Printf("pushed %s to %s (%s)\n", branch, name, newHead.Short())
	return exitSuccess
}
