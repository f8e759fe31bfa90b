package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rune-vcs/rune/internal/lfs"
	"github.com/rune-vcs/rune/internal/syncclient"
)

func runTrack(args []string) int {
	if len(args) == 0 {
		return fatalf("usage: rune track <pattern>...")
	}
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	for _, pat := range args {
		ctx.lfsCfg.Patterns = append(ctx.lfsCfg.Patterns, pat)
	}
	if err := lfs.SaveConfig(ctx.repo.RuneDir, ctx.lfsCfg); err != nil {
		return fatalf("track: %v", err)
	}
	return exitSuccess
}

func runLock(args []string) int {
	if len(args) == 0 {
		return fatalf("usage: rune lock <path> [--reason <reason>] [--ttl <seconds>]")
	}
	path := args[0]
	reason := lfs.ReasonDevelopment
	var ttl int64
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--reason":
			if i+1 < len(args) {
				reason = lfs.Reason(args[i+1])
				i++
			}
		case "--ttl":
			if i+1 < len(args) {
				fmt.Sscanf(args[i+1], "%d", &ttl)
				i++
			}
		}
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	reg, err := syncclient.OpenRegistry(ctx.repo.RuneDir)
	if err != nil {
		return fatalf("%v", err)
	}
	remote, ok := reg.Get("origin")
	if !ok {
		return fatalf("unknown remote %q", "origin")
	}

	client := syncclient.NewClient(remote)
	lock, err := client.AcquireLock(context.Background(), path, reason, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rune: %v\n", err)
		return exitCodeFor(err)
	}
	fmt.Printf("locked %s (owner %s)\n", lock.Path, lock.OwnerID)
	return exitSuccess
}

func runUnlock(args []string) int {
	if len(args) == 0 {
		return fatalf("usage: rune unlock <path> [--force]")
	}
	path := args[0]
	force := false
	for _, a := range args[1:] {
		if a == "--force" {
			force = true
		}
	}

	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	reg, err := syncclient.OpenRegistry(ctx.repo.RuneDir)
	if err != nil {
		return fatalf("%v", err)
	}
	remote, ok := reg.Get("origin")
	if !ok {
		return fatalf("unknown remote %q", "origin")
	}

	client := syncclient.NewClient(remote)
	released, err := client.ReleaseLock(context.Background(), path, force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rune: %v\n", err)
		return exitCodeFor(err)
	}
	if !released {
		fmt.Println("not locked")
		return exitUserErr
	}
	return exitSuccess
}

func runLocks(args []string) int {
	ctx, err := openRepoContext()
	if err != nil {
		return fatalf("%v", err)
	}
	reg, err := syncclient.OpenRegistry(ctx.repo.RuneDir)
	if err != nil {
		return fatalf("%v", err)
	}
	remote, ok := reg.Get("origin")
	if !ok {
		return fatalf("unknown remote %q", "origin")
	}

	client := syncclient.NewClient(remote)
	locks, err := client.ListLocks(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "rune: %v\n", err)
		return exitCodeFor(err)
	}
	for _, l := range locks {
		expiry := "never"
		if l.ExpiresAt != nil {
			expiry = time.Unix(*l.ExpiresAt, 0).UTC().Format(time.RFC3339)
		}
		fmt.Printf("%s\t%s\t%s\texpires %s\n", l.Path, l.OwnerID, l.Reason, expiry)
	}
	return exitSuccess
}
