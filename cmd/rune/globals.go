package main

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/rune-vcs/rune/internal/rerr"
)

// globalFlags holds the output-mode switches spec.md §6 requires be
// "propagated to the core as configuration fields": verbose, quiet, and
// assume-yes. Grounded in cmd/gitcli/globals.go's parseGlobalFlags,
// trimmed of --color/--no-color (termcolor has no home in this module;
// see DESIGN.md) and extended with --yes.
type globalFlags struct {
	verbose bool
	quiet   bool
	yes     bool
}

// parseGlobalFlags extracts the global switches from anywhere in args,
// returning the parsed flags and the remaining (filtered) arguments.
func parseGlobalFlags(args []string) (globalFlags, []string) {
	var gf globalFlags
	var remaining []string

	for _, arg := range args {
		switch arg {
		case "-v", "--verbose":
			gf.verbose = true
		case "-q", "--quiet":
			gf.quiet = true
		case "-y", "--yes", "--assume-yes":
			gf.yes = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return gf, remaining
}

// confirm asks the user to confirm a destructive action on an interactive
// terminal. With --yes, or when stdin is not a terminal (scripted use),
// it proceeds without prompting rather than blocking forever on a read
// that will never be answered.
func confirm(gf globalFlags, prompt string) bool {
	if gf.yes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	var answer string
	fmt.Fscanln(os.Stdin, &answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// logVerbose writes msg to stderr only when verbose output was requested.
func logVerbose(gf globalFlags, format string, args ...any) {
	if gf.verbose && !gf.quiet {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

const (
	exitSuccess  = 0
	exitUserErr  = 1
	exitConflict = 2
	exitNetwork  = 3
	exitInternal = 4
)

// exitCodeFor maps a returned error to the exit code spec.md §6 assigns to
// its kind: 0 success, 1 user error, 2 conflict/busy, 3 network failure,
// 4 internal error.
func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	kind, ok := rerr.KindOf(err)
	if !ok {
		return exitInternal
	}
	switch kind {
	case rerr.UserInput, rerr.Auth:
		return exitUserErr
	case rerr.State, rerr.Concurrency:
		return exitConflict
	case rerr.Network:
		return exitNetwork
	default:
		return exitInternal
	}
}
