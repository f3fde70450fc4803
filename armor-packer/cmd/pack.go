package cmd

import (
	"context"
	"fmt"
	"strings"

	"armor-tools/go/pkg/armor"
	"armor-tools/go/pkg/backend"
	"armor-tools/go/pkg/bundle"
	"armor-tools/go/pkg/config"
	"armor-tools/go/pkg/library"
	"armor-tools/go/pkg/packer"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/shell"
)

type packFlags struct {
	setup    string
	output   string
	options  string
	xoptions string
	archive  string
	clean    bool
}

func newPackCommand(a *app) *cobra.Command {
	var f packFlags
	cmd := &cobra.Command{
		Use:   "pack [flags] SCRIPT",
		Short: "Obfuscate the scripts and pack them into a bundle.",
		Long: `Obfuscate the entry script and the scripts beside it, then build a
distribution with the selected backend. The source tree is restored after
the build, whether it succeeds or not.`,
		Example: `  armor-packer pack hello.py
  armor-packer pack -t py2exe -s setup.py -O dist hello.py
  armor-packer pack -e "--onefile --noconsole" -x "--advanced 1" hello.py`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.pack(cmd.Context(), args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringP("type", "t", config.Defaults().Type, strings.Join(backend.Names(), ", "))
	flags.StringVarP(&f.setup, "setup", "s", "", "Setup script for freeze backends, or the .spec file for PyInstaller")
	flags.StringVarP(&f.output, "output", "O", "", "Directory to put final built distributions in")
	flags.StringVarP(&f.options, "options", "e", "", "Extra options to run pack command")
	flags.StringVarP(&f.xoptions, "xoptions", "x", "", "Extra options to obfuscate scripts")
	flags.BoolVar(&f.clean, "clean", false, "Remove build path before packing")
	flags.StringVar(&f.archive, "archive", "", "Also export the output as a .tar.zst archive")
	flags.StringSlice("exclude", nil, "Glob patterns left out of --archive")
	flags.String("python", "", "Python interpreter command")
	flags.String("pyarmor", "", "Protection tool command")
	return cmd
}

func (a *app) pack(ctx context.Context, entry string, f packFlags) error {
	python, err := a.cfg.PythonCommand()
	if err != nil {
		return err
	}
	pyarmor, err := a.cfg.PyarmorCommand()
	if err != nil {
		return err
	}
	options, err := splitOptions("-e/--options", f.options)
	if err != nil {
		return err
	}
	xoptions, err := splitOptions("-x/--xoptions", f.xoptions)
	if err != nil {
		return err
	}

	r := a.newRunner(a.log)
	p := &packer.Packer{
		Log:    a.log,
		Runner: r,
		Armor:  &armor.Tool{Log: a.log, Runner: r, Command: pyarmor},
		Merger: &library.Merger{Log: a.log, Compiler: &library.PyCompiler{Runner: r, Python: python}},
		Python: python,
	}

	req, err := p.Prepare(ctx, packer.Options{
		Kind:     backend.Kind(a.cfg.Type),
		Entry:    entry,
		Setup:    f.setup,
		Output:   f.output,
		Options:  options,
		XOptions: xoptions,
		Clean:    f.clean,
	})
	if err != nil {
		return err
	}
	out, err := p.Pack(ctx, req)
	if err != nil {
		return err
	}

	if f.archive != "" {
		if _, err := bundle.Create(a.log, out, f.archive, a.cfg.ArchiveExclude); err != nil {
			return err
		}
	}
	return nil
}

// splitOptions splits s with POSIX shell quoting rules.
func splitOptions(name, s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields, err := shell.Fields(s, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", name, s, err)
	}
	return fields, nil
}
