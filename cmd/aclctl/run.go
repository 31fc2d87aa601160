package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{name: "migrate", summary: "apply the permission schema", run: runMigrate},
	{name: "seed", summary: "load roles and grants from a YAML file", run: runSeed},
	{name: "check", summary: "check a permission for one or more users", run: runCheck},
	{name: "health", summary: "ping Postgres and optionally Redis", run: runHealth},
}

type commandKey struct{}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}
	for _, c := range commands {
		if c.name == args[0] {
			ctx = context.WithValue(ctx, commandKey{}, c.name)
			err := c.run(ctx, &app{stdout: stdout, stderr: stderr}, args[1:])
			if errors.Is(err, errHelpShown) {
				return nil
			}
			return err
		}
	}
	printUsage(stderr)
	return usage("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: aclctl <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'aclctl <command> --help' for command flags.")
}

// parseFlags parses args into fs, then loads the environment and logger.
// After --help it prints the command help and returns errHelpShown.
func parseFlags(a *app, fs *pflag.FlagSet, synopsis string, args []string) error {
	a.addGlobalFlags(fs)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stdout, "Usage: aclctl %s\n\nFlags:\n%s", synopsis, fs.FlagUsages())
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelpShown
		}
		return usage("%v", err)
	}
	return a.setup()
}

// errHelpShown stops a command after --help without printing an error.
var errHelpShown = &exitError{code: 0}
