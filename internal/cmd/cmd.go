// Package cmd wires the slic3mf CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kjplatz/slic3mf/internal/arrange"
	"github.com/kjplatz/slic3mf/internal/assemble"
	"github.com/kjplatz/slic3mf/internal/extract"
	"github.com/kjplatz/slic3mf/internal/inspect"
	"github.com/kjplatz/slic3mf/internal/logger"
	"github.com/kjplatz/slic3mf/internal/model"
	"github.com/kjplatz/slic3mf/internal/printconfig"
	"github.com/kjplatz/slic3mf/internal/threemf"
	"github.com/kjplatz/slic3mf/internal/thumbnail"
	"github.com/kjplatz/slic3mf/internal/ui"
	"github.com/kjplatz/slic3mf/version"
)

type CLI struct {
	LogLevel string `help:"Log level: debug, info, warn, error" default:"warn"`
	LogFile  string `help:"Write a rotating log file in addition to the console"`

	Inspect    *InspectCmd    `cmd:"" help:"Inspect a 3MF file and show its scene"`
	Extract    *ExtractCmd    `cmd:"" help:"Extract volume meshes from a 3MF file to STL"`
	Repack     *RepackCmd     `cmd:"" help:"Load a 3MF file and write it back out"`
	Arrange    *ArrangeCmd    `cmd:"" help:"Re-place the instances of a 3MF file on the plate"`
	Assemble   *AssembleCmd   `cmd:"" help:"Build a 3MF archive from a YAML plan"`
	Completion *CompletionCmd `cmd:"" help:"Generate shell completion scripts"`
	Version    *VersionCmd    `cmd:"" help:"Show version information"`
}

// AfterApply initializes logging before any command runs.
func (cli *CLI) AfterApply() error {
	return logger.Init(logger.Options{
		Level:   cli.LogLevel,
		File:    cli.LogFile,
		Console: true,
	})
}

type InspectCmd struct {
	File   string `arg:"" help:"3MF file to inspect"`
	Raw    string `help:"Dump one archive part instead (e.g. 3D/3dmodel.model)"`
	Format string `help:"Output format: text or yaml" default:"text" enum:"text,yaml"`
}

func (c *InspectCmd) Run() error {
	inspector := inspect.NewInspector()
	if c.Raw != "" {
		return inspector.DumpPart(c.File, c.Raw, os.Stdout)
	}
	if c.Format == "yaml" {
		return inspector.InspectYAML(c.File, os.Stdout)
	}
	return inspector.Inspect(c.File)
}

type ExtractCmd struct {
	File   string `arg:"" help:"3MF file to extract from"`
	Output string `help:"Output directory" short:"o" default:"."`
	ASCII  bool   `help:"Write ASCII STL instead of binary"`
}

func (c *ExtractCmd) Run() error {
	return extract.NewExtractor().Extract(c.File, c.Output, !c.ASCII)
}

type RepackCmd struct {
	File      string `arg:"" help:"3MF file to repack"`
	Output    string `help:"Output file path" short:"o" required:""`
	Thumbnail bool   `help:"Render a fresh thumbnail into the archive"`
	Strict    bool   `help:"Refuse archives written by a newer format version"`
}

func (c *RepackCmd) Run() error {
	m := model.New()
	cfg := printconfig.New()

	if err := threemf.Load(c.File, m, cfg, c.Strict, logger.L); err != nil {
		if threemf.IsVersionError(err) {
			ui.PrintError(err.Error())
			os.Exit(2)
		}
		return err
	}

	if c.Thumbnail {
		img := thumbnail.Render(m, 256, 256)
		if err := threemf.Store(c.Output, m, cfg, img, logger.L); err != nil {
			return err
		}
	} else if err := threemf.Store(c.Output, m, cfg, nil, logger.L); err != nil {
		return err
	}

	ui.PrintSuccess("wrote " + c.Output)
	return nil
}

type ArrangeCmd struct {
	File       string  `arg:"" help:"3MF file to arrange"`
	Output     string  `help:"Output file path" short:"o" required:""`
	PlateWidth float64 `help:"Build plate width in mm" default:"250"`
	Margin     float64 `help:"Margin between objects in mm" default:"10"`
	Compact    bool    `help:"Pack toward a square layout instead of shelves"`
}

func (c *ArrangeCmd) Run() error {
	m := model.New()
	cfg := printconfig.New()

	if err := threemf.Load(c.File, m, cfg, false, logger.L); err != nil {
		return err
	}

	arrange.Arrange(m, arrange.Options{
		PlateWidth: c.PlateWidth,
		Margin:     c.Margin,
		Compact:    c.Compact,
	})

	if err := threemf.Store(c.Output, m, cfg, nil, logger.L); err != nil {
		return err
	}

	ui.PrintSuccess("wrote " + c.Output)
	return nil
}

type AssembleCmd struct {
	Plan string `arg:"" help:"YAML plan file"`
}

// Help adds usage examples to the command help.
func (c *AssembleCmd) Help() string {
	return renderAssembleHelp()
}

func (c *AssembleCmd) Run() error {
	plan, err := assemble.NewLoader().Load(c.Plan)
	if err != nil {
		return err
	}
	if err := assemble.NewAssembler().Run(plan); err != nil {
		return err
	}
	ui.PrintSuccess("wrote " + plan.Output)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(version.Get().String())
	return nil
}

// Parse parses command line arguments and executes the selected
// command.
func Parse() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("slic3mf"),
		kong.Description("Read, write and rework slicer 3MF archives"),
		kong.UsageOnError(),
	)
	defer logger.Sync()
	if err := ctx.Run(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
