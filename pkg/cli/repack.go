package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/flowpatch/pkg/logger"
	"github.com/devicelab-dev/flowpatch/pkg/report"
	"github.com/devicelab-dev/flowpatch/pkg/solution"
)

var repackCommand = &cli.Command{
	Name:  "repack",
	Usage: "Patch the flow and rebuild the solution zip with it",
	Description: `Copies the exported solution archive and replaces its workflow entry with
the patched flow. The source archive is left untouched.

Examples:
  flowpatch repack
  flowpatch repack --skip-patch --solution validate_check.zip --solution-output fixed.zip`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "solution",
			Usage:   "Exported solution zip to start from",
			EnvVars: []string{"FLOWPATCH_SOLUTION"},
		},
		&cli.StringFlag{
			Name:    "solution-output",
			Usage:   "Path of the rebuilt solution zip",
			EnvVars: []string{"FLOWPATCH_SOLUTION_OUTPUT"},
		},
		&cli.StringFlag{
			Name:  "entry",
			Usage: "Archive entry of the workflow (default: Workflows/<flow file name>)",
		},
		&cli.BoolFlag{
			Name:  "skip-patch",
			Usage: "Package the flow file as it is on disk",
		},
	},
	Action: repackAction,
}

func repackAction(c *cli.Context) error {
	if c.Bool("dry-run") {
		return fmt.Errorf("--dry-run cannot be used with repack")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("solution") {
		cfg.Solution.Source = c.String("solution")
	}
	if c.IsSet("solution-output") {
		cfg.Solution.Output = c.String("solution-output")
	}
	if c.IsSet("entry") {
		cfg.Solution.Entry = c.String("entry")
	}
	defer setupLogging(c, cfg)()

	p := report.NewPrinter(c.App.Writer, cfg.NoColor)

	var (
		summary *report.Summary
		content []byte
	)
	if c.Bool("skip-patch") {
		source := cfg.OutputPath()
		content, err = os.ReadFile(source) //#nosec G304 -- user-selected flow file
		if err != nil {
			return fmt.Errorf("read flow: %w", err)
		}
		summary = report.NewSummary(source)
	} else {
		summary, content, err = patchFlow(cfg, patchOptions{PrintPatch: c.Bool("print-patch")}, c.App.Writer, p)
		if err != nil {
			logger.Error("%v", err)
			return err
		}
		p.Summary(summary)
	}

	entry := cfg.Solution.Entry
	if entry == "" {
		entry = solution.EntryName(cfg.Flow)
	}
	logger.Info("repacking %s -> %s (%s)", cfg.Solution.Source, cfg.Solution.Output, entry)
	result, err := solution.Repack(cfg.Solution.Source, cfg.Solution.Output, entry, content)
	if err != nil {
		logger.Error("%v", err)
		return fmt.Errorf("repack: %w", err)
	}

	summary.Solution = &report.Solution{
		Source:   cfg.Solution.Source,
		Output:   cfg.Solution.Output,
		Entry:    entry,
		Entries:  result.Entries,
		Replaced: result.Replaced,
	}
	if result.Replaced {
		p.Info("Replaced %s in %s", entry, cfg.Solution.Output)
	} else {
		p.Info("Added %s to %s", entry, cfg.Solution.Output)
	}
	return writeReport(cfg, summary)
}
