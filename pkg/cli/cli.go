// Package cli provides the command-line interface for flowpatch.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "Workflow definition JSON to patch",
		EnvVars: []string{"FLOWPATCH_FILE"},
	},
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write the patched flow here instead of overwriting --file",
		EnvVars: []string{"FLOWPATCH_OUTPUT"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default: flowpatch.yaml in the working directory, if present)",
		EnvVars: []string{"FLOWPATCH_CONFIG"},
	},
	&cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Show the changes as a diff without writing anything",
	},
	&cli.BoolFlag{
		Name:  "print-patch",
		Usage: "Print the JSON Patch (RFC 6902) applied to the flow",
	},
	&cli.StringFlag{
		Name:    "report",
		Usage:   "Write a JSON summary of the run to this path",
		EnvVars: []string{"FLOWPATCH_REPORT"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Append diagnostic logs to this file",
		EnvVars: []string{"FLOWPATCH_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging to stderr",
		EnvVars: []string{"FLOWPATCH_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:    "no-color",
		Usage:   "Disable ANSI colors",
		EnvVars: []string{"FLOWPATCH_NO_COLOR"},
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "flowpatch",
		Usage:   "Fix the try/catch/finally scopes of the SharePoint permission scanner flow",
		Version: Version,
		Description: `flowpatch moves Catch_Scope out of Try_Scope and adds the Catch_Scope and
Finally_Scope actions that record the scan session outcome. Without flags it
rewrites the exported flow in place.

Examples:
  flowpatch
  flowpatch --dry-run
  flowpatch -f flow.json -o flow_FIXED.json
  flowpatch repack --solution validate_check.zip`,
		Flags:  GlobalFlags,
		Action: patchAction,
		Commands: []*cli.Command{
			repackCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
