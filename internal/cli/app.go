// Package cli provides a lightweight subcommand dispatcher for the rune
// command-line front end. It is deliberately thin: flag parsing and command
// behavior live in the individual commands, and help/color/progress output
// is explicitly outside the core's scope. The package only owns registration
// and dispatch, returning the exit codes defined for the CLI boundary
// (0 success, 1 user error, 2 conflict/busy, 3 network failure, 4 internal).
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Command describes a single CLI subcommand.
type Command struct {
	Name      string
	Summary   string // one-line description for listing
	Run       func(args []string) int
	NeedsRepo bool // whether the command requires a loaded repository
}

// App is a lightweight CLI application with subcommand dispatch.
type App struct {
	Name     string
	Version  string
	Stderr   io.Writer
	commands map[string]*Command
	order    []string // insertion order preserved for listing
}

// NewApp creates a new App with the given name and version.
func NewApp(name, version string) *App {
	return &App{
		Name:     name,
		Version:  version,
		Stderr:   os.Stderr,
		commands: make(map[string]*Command),
	}
}

// Register adds a command to the app. It panics if a command with the
// same name has already been registered.
func (a *App) Register(cmd *Command) {
	if _, exists := a.commands[cmd.Name]; exists {
		panic(fmt.Sprintf("cli: duplicate command %q", cmd.Name))
	}
	a.commands[cmd.Name] = cmd
	a.order = append(a.order, cmd.Name)
}

// Lookup returns the named command, or nil if not found.
func (a *App) Lookup(name string) *Command {
	return a.commands[name]
}

// CommandNames returns all registered command names in sorted order.
func (a *App) CommandNames() []string {
	names := make([]string, len(a.order))
	copy(names, a.order)
	sort.Strings(names)
	return names
}

// Run dispatches args to the appropriate command and returns its exit code.
// Unknown or missing commands return 1 (user error), matching spec.md §6.
func (a *App) Run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintf(a.Stderr, "usage: %s <command> [args...]\n", a.Name)
		return 1
	}

	name := args[0]
	subArgs := args[1:]

	cmd := a.Lookup(name)
	if cmd == nil {
		fmt.Fprintf(a.Stderr, "%s: %q is not a command\n", a.Name, name)
		return 1
	}
	return cmd.Run(subArgs)
}
