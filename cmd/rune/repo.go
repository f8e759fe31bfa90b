package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rune-vcs/rune/internal/objstore"
	"github.com/rune-vcs/rune/internal/syncclient"
)

func runInit(args []string) int {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fatalf("%v", err)
	}
	repo, err := objstore.Init(dir)
	if err != nil {
		return fatalf("%v", err)
	}
	fmt.Printf("initialized empty rune repository in %s\n", repo.RuneDir)
	return exitSuccess
}

func runClone(args []string) int {
	if len(args) < 2 {
		return fatalf("usage: rune clone <url> <dest>")
	}
	url, dest := args[0], args[1]
	token := os.Getenv(authTokenEnv)

	_, err := syncclient.Clone(context.Background(), url, dest, token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rune: %v\n", err)
		return exitCodeFor(err)
	}
	fmt.Printf("cloned %s into %s\n", url, dest)
	return exitSuccess
}
