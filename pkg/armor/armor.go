// Package armor drives the external protection tool and describes the
// layout of what it produces.
package armor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"armor-tools/go/pkg/fsx"
	"armor-tools/go/pkg/logbowl"
	"armor-tools/go/pkg/runner"

	"github.com/bmatcuk/doublestar/v4"
)

// Runtime support files produced next to the protected scripts.
const (
	LoaderModule = "pytransform.py"
	LicenseFile  = "license.lic"
)

// RuntimePatterns select the files that must ship beside a frozen
// executable: key, license and native library.
var RuntimePatterns = []string{"*.key", "*.lic", "_pytransform.*"}

// Tool invokes the protection tool. Command is the argument prefix that
// starts it, e.g. ["pyarmor"] or ["python3", "-m", "pyarmor"].
type Tool struct {
	Log     logbowl.Logger
	Runner  runner.Runner
	Command []string
}

func (t *Tool) run(ctx context.Context, args ...string) error {
	full := append(append([]string(nil), t.Command...), args...)
	if err := t.Runner.Run(ctx, runner.Command{Args: full}); err != nil {
		return fmt.Errorf("protection tool %s: %w", args[0], err)
	}
	return nil
}

// Init creates a protection project for the scripts in src.
func (t *Tool) Init(ctx context.Context, src, entry, project string) error {
	t.Log.Info("armor", "init", "progress", "Creating protection project", "project", project)
	return t.run(ctx, "init", "--type", "app", "--src", src, "--entry", entry, project)
}

// Configure sets the project manifest so every script except the entry and
// the loader is protected, and build output folders are skipped.
func (t *Tool) Configure(ctx context.Context, project, entry string) error {
	t.Log.Info("armor", "update", "progress", "Configuring protection project", "project", project)
	return t.run(ctx, "config", "--runtime-path", "", "--manifest", Manifest(entry), project)
}

// Build protects the project into <project>/dist.
func (t *Tool) Build(ctx context.Context, project string) error {
	t.Log.Info("armor", "build", "progress", "Building protection project", "project", project)
	return t.run(ctx, "build", project)
}

// Obfuscate protects entryPath and the scripts reachable from its directory
// into outDir.
func (t *Tool) Obfuscate(ctx context.Context, outDir string, extra []string, entryPath string) error {
	t.Log.Info("armor", "process", "progress", "Obfuscating scripts", "entry", entryPath, "output", outDir)
	args := []string{"obfuscate", "-r", "-O", outDir}
	args = append(args, extra...)
	return t.run(ctx, append(args, entryPath)...)
}

// Manifest returns the comma-joined filter list for Configure.
func Manifest(entry string) string {
	filters := []string{
		"global-include *.py",
		"prune build, prune dist",
		fmt.Sprintf("exclude %s %s", entry, LoaderModule),
	}
	return strings.Join(filters, ",")
}

// ProjectDist is where Build writes its output.
func ProjectDist(project string) string {
	return filepath.Join(project, "dist")
}

// CopyRuntimeFiles copies the files matching RuntimePatterns from dir into
// dest and returns the copied names.
func CopyRuntimeFiles(log logbowl.Logger, dir, dest string) ([]string, error) {
	fsys := os.DirFS(dir)
	var copied []string
	for _, pattern := range RuntimePatterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return copied, err
		}
		for _, name := range matches {
			if err := fsx.CopyFile(filepath.Join(dir, name), filepath.Join(dest, name)); err != nil {
				return copied, fmt.Errorf("copy runtime file %s: %w", name, err)
			}
			log.Debug("armor", "copy", "success", "Copied runtime file", "file", name, "to", dest)
			copied = append(copied, name)
		}
	}
	return copied, nil
}
