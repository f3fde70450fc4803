// Package packer packs protected scripts with a third-party build backend.
//
// Freeze backends (py2exe, py2app, cx_Freeze) run the user's setup script
// while the protected entry is swapped into the source tree, then get their
// library archive rebuilt from the protected modules. The bundler backend
// (PyInstaller) is driven by a generated .spec that is patched to read
// protected modules instead of the originals.
package packer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"armor-tools/go/pkg/armor"
	"armor-tools/go/pkg/backend"
	"armor-tools/go/pkg/fsx"
	"armor-tools/go/pkg/library"
	"armor-tools/go/pkg/logbowl"
	"armor-tools/go/pkg/runner"
	"armor-tools/go/pkg/specfile"
	"armor-tools/go/pkg/swap"
)

// ProjectDir is the folder, inside the build (freeze) or output (bundler)
// directory, that holds the protection project.
const ProjectDir = "obf"

// MissingBuildScriptError is returned when a freeze backend has no setup
// script to run.
type MissingBuildScriptError struct {
	Kind backend.Kind
	Path string
	Hint string
}

func (e *MissingBuildScriptError) Error() string {
	return fmt.Sprintf("no setup script %s found", e.Path)
}

// Packer runs packaging requests. A Packer must not pack two requests that
// share a source tree at the same time.
type Packer struct {
	Log    logbowl.Logger
	Runner runner.Runner
	Armor  *armor.Tool
	Merger *library.Merger
	// Python is the interpreter command used to run backends.
	Python []string
}

type packFunc func(p *Packer, ctx context.Context, req Request) error

var families = map[backend.Family]packFunc{
	backend.Freeze:  (*Packer).packFrozen,
	backend.Bundler: (*Packer).packBundled,
}

// Prepare looks up the backend for o.Kind, probes the interpreter when the
// backend's paths depend on it, and resolves the request.
func (p *Packer) Prepare(ctx context.Context, o Options) (Request, error) {
	d, err := backend.Lookup(o.Kind)
	if err != nil {
		return Request{}, err
	}
	if d.NeedsInterpreter() {
		py, err := backend.Probe(ctx, p.Runner, p.Python)
		if err != nil {
			return Request{}, err
		}
		p.Log.Debug("backend", "resolve", "info", "Python interpreter", "platform", py.Platform, "version", py.Version)
		d = d.Resolve(py)
	}
	return NewRequest(o, d)
}

// Pack builds the distribution described by req and returns the output
// directory.
func (p *Packer) Pack(ctx context.Context, req Request) (string, error) {
	pack, ok := families[req.Backend.Family]
	if !ok {
		return "", fmt.Errorf("backend %s has unknown family %s", req.Backend.Kind, req.Backend.Family)
	}

	p.Log.Info("packer", "pack", "start", fmt.Sprintf("Prepare to pack obfuscated scripts with %s...", req.Backend.Kind))
	p.Log.Info("packer", "pack", "info", "Entry script", "entry", req.Entry, "src", req.SourceDir)

	if err := pack(p, ctx, req); err != nil {
		return "", err
	}

	p.Log.Info("packer", "finish", "success", "Pack obfuscated scripts successfully.", "output", req.Output)
	return req.Output, nil
}

func (p *Packer) packFrozen(ctx context.Context, req Request) error {
	d := req.Backend
	if !fsx.Exists(req.Script) {
		p.Log.Error("packer", "validate", "notfound", "Please generate the setup script first", "hint", d.Hint)
		return &MissingBuildScriptError{Kind: d.Kind, Path: req.Script, Hint: d.Hint}
	}
	if len(req.XOptions) > 0 {
		p.Log.Warn("packer", "validate", "warning", "Extra protection options are ignored by this backend", "backend", d.Kind)
	}

	project := filepath.Join(req.BuildDir, ProjectDir)
	dist := armor.ProjectDist(project)
	if err := p.cleanProject(req, project); err != nil {
		return err
	}

	if err := p.Armor.Init(ctx, req.SourceDir, req.Entry, project); err != nil {
		return err
	}
	if err := p.Armor.Configure(ctx, project, req.Entry); err != nil {
		return err
	}
	if err := p.Armor.Build(ctx, project); err != nil {
		return err
	}
	if protected := filepath.Join(dist, req.Entry); !fsx.Exists(protected) {
		p.Log.Error("packer", "validate", "notfound", "Protected entry missing from project output", "path", protected)
		return fmt.Errorf("protected entry %s not found in %s; run again with --clean", req.Entry, dist)
	}

	script, err := filepath.Rel(req.BuildDir, req.Script)
	if err != nil {
		script = req.Script
	}
	args := append(append([]string(nil), p.Python...), script)
	args = append(args, d.Command...)
	args = append(args, relPath(req.Output, req.BuildDir))
	args = append(args, req.Options...)

	tx := swap.Transaction{
		Log:          p.Log,
		SourceDir:    req.SourceDir,
		Entry:        req.Entry,
		WorkDir:      req.BuildDir,
		ProtectedDir: dist,
	}
	err = tx.Run(ctx, func(ctx context.Context, workDir string) error {
		return p.Runner.Run(ctx, runner.Command{Args: args, Dir: workDir})
	})
	if err != nil {
		return fmt.Errorf("run %s: %w", d.Kind, err)
	}

	if d.LibraryName != "" {
		if err := p.Merger.Merge(ctx, dist, filepath.Join(req.Output, d.LibraryName)); err != nil {
			return fmt.Errorf("update library: %w", err)
		}
	}

	copied, err := armor.CopyRuntimeFiles(p.Log, dist, req.Output)
	if err != nil {
		return err
	}
	p.Log.Info("packer", "copy", "success", "Copied runtime files", "files", copied)
	return nil
}

func (p *Packer) packBundled(ctx context.Context, req Request) error {
	d := req.Backend
	project := filepath.Join(req.Output, ProjectDir)
	dist := armor.ProjectDist(project)
	if err := p.cleanProject(req, project); err != nil {
		return err
	}

	if err := p.Armor.Obfuscate(ctx, dist, req.XOptions, filepath.Join(req.SourceDir, req.Entry)); err != nil {
		return err
	}

	base := append(append([]string(nil), p.Python...), d.Command...)
	base = append(base, req.Output)
	base = append(base, req.Options...)

	if req.Clean || !fsx.Exists(req.Script) {
		p.Log.Info("spec", "generate", "progress", "Generating .spec file", "spec", req.Script)
		args := append(append([]string(nil), base...), specfile.GenerateArgs(req.Script, dist, req.SourceDir, req.Entry)...)
		if err := p.Runner.Run(ctx, runner.Command{Args: args, Dir: req.BuildDir}); err != nil {
			return fmt.Errorf("generate spec file: %w", err)
		}
	} else {
		p.Log.Info("spec", "load", "cached", "Use cached .spec file", "spec", req.Script)
	}

	patched, err := specfile.Patch(req.Script, dist, req.Entry)
	if err != nil {
		return err
	}
	p.Log.Info("spec", "patch", "success", "Save patched .spec file", "spec", patched)

	args := append(append([]string(nil), base...), "-y", patched)
	if err := p.Runner.Run(ctx, runner.Command{Args: args, Dir: req.BuildDir}); err != nil {
		return fmt.Errorf("run %s: %w", d.Kind, err)
	}
	return nil
}

func (p *Packer) cleanProject(req Request, project string) error {
	p.Log.Info("packer", "build", "info", "Protection project", "path", project)
	if !req.Clean || !fsx.Exists(project) {
		return nil
	}
	p.Log.Info("packer", "clean", "progress", "Remove build path", "path", project)
	if err := os.RemoveAll(project); err != nil {
		return fmt.Errorf("clean protection project: %w", err)
	}
	return nil
}

func relPath(path, base string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}
