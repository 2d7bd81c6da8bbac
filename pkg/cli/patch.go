package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/flowpatch/pkg/config"
	"github.com/devicelab-dev/flowpatch/pkg/flow"
	"github.com/devicelab-dev/flowpatch/pkg/logger"
	"github.com/devicelab-dev/flowpatch/pkg/patch"
	"github.com/devicelab-dev/flowpatch/pkg/report"
)

// patchOptions control a single patch run.
type patchOptions struct {
	DryRun     bool
	PrintPatch bool
}

func patchAction(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unexpected argument %q (use --file to choose the flow)", c.Args().First())
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer setupLogging(c, cfg)()

	p := report.NewPrinter(c.App.Writer, cfg.NoColor)
	summary, _, err := patchFlow(cfg, patchOptions{
		DryRun:     c.Bool("dry-run"),
		PrintPatch: c.Bool("print-patch"),
	}, c.App.Writer, p)
	if err != nil {
		logger.Error("%v", err)
		return err
	}

	if summary.DryRun {
		p.Info("Dry run: %s was not written", cfg.OutputPath())
	} else {
		p.Summary(summary)
	}
	return writeReport(cfg, summary)
}

// patchFlow loads the flow named by cfg, applies the patch and, unless this is
// a dry run, writes the result. It returns the patched content.
func patchFlow(cfg *config.Config, opts patchOptions, w io.Writer, p *report.Printer) (*report.Summary, []byte, error) {
	logger.Info("reading %s", cfg.Flow)
	doc, err := flow.ParseFile(cfg.Flow)
	if err != nil {
		return nil, nil, fmt.Errorf("load flow: %w", err)
	}

	plan, out, err := patch.Document(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("patch %s: %w", cfg.Flow, err)
	}

	summary := report.NewSummary(cfg.Flow)
	summary.RemovedNested = plan.RemovesNested
	summary.Changed = !patch.Equal(doc.Bytes(), out)
	summary.Changes = plan.Changes()
	for _, op := range plan.Operations {
		summary.Operations = append(summary.Operations, op.Op+" "+op.Path)
	}

	if opts.PrintPatch {
		data, err := plan.JSON()
		if err != nil {
			return nil, nil, fmt.Errorf("encode patch: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}

	if opts.DryRun {
		summary.DryRun = true
		p.Diff(report.Diff(string(doc.Bytes()), string(out)))
		return summary, out, nil
	}

	target := cfg.OutputPath()
	if err := flow.WriteFile(target, out); err != nil {
		return nil, nil, fmt.Errorf("write %s: %w", target, err)
	}
	logger.Info("wrote %s (%d bytes)", target, len(out))
	summary.Output = target

	return summary, out, nil
}

// loadConfig resolves configuration: flags override the config file, which
// overrides defaults.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.IsSet("file") {
		cfg.Flow = c.String("file")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("report") {
		cfg.Report = c.String("report")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.IsSet("no-color") {
		cfg.NoColor = c.Bool("no-color")
	}
	if cfg.Flow == "" {
		return nil, fmt.Errorf("no flow file configured")
	}
	return cfg, nil
}

// setupLogging starts the diagnostic log and returns its cleanup.
func setupLogging(c *cli.Context, cfg *config.Config) func() {
	switch {
	case cfg.LogFile != "":
		if err := logger.Init(cfg.LogFile); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
			return func() {}
		}
	case c.Bool("verbose"):
		logger.InitWriter(c.App.ErrWriter)
	default:
		return func() {}
	}
	return logger.Close
}

func writeReport(cfg *config.Config, summary *report.Summary) error {
	if cfg.Report == "" {
		return nil
	}
	if err := summary.WriteJSON(cfg.Report); err != nil {
		return err
	}
	logger.Info("summary written to %s", cfg.Report)
	return nil
}
