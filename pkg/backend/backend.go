// Package backend is the registry of supported build backends. It is the
// single source of truth for default output paths, library archive names and
// command templates.
package backend

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"armor-tools/go/pkg/runner"
)

// Kind names a build backend.
type Kind string

const (
	PyInstaller Kind = "PyInstaller"
	Py2exe      Kind = "py2exe"
	Py2app      Kind = "py2app"
	CxFreeze    Kind = "cx_Freeze"
)

// Family selects how the packer drives a backend.
type Family int

const (
	// Freeze backends run a setup script and produce a library zip that is
	// merged afterwards.
	Freeze Family = iota
	// Bundler backends are driven by a generated .spec descriptor.
	Bundler
)

func (f Family) String() string {
	switch f {
	case Freeze:
		return "freeze"
	case Bundler:
		return "bundler"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// Descriptor is the immutable configuration of one backend.
//
// OutputDir and LibraryName may hold the placeholders {platform}, {version}
// and {version_nodot}; Resolve fills them from an Interpreter.
type Descriptor struct {
	Kind        Kind
	Family      Family
	OutputDir   string
	LibraryName string
	// Command is the argument template placed after the interpreter (freeze
	// family: after the setup script). The output directory follows it.
	Command []string
	// ScriptName is the build script looked up in the build directory when
	// none is given.
	ScriptName string
	// Hint tells the user how to create a missing build script.
	Hint string
}

var registry = map[Kind]Descriptor{
	PyInstaller: {
		Kind:      PyInstaller,
		Family:    Bundler,
		OutputDir: "dist",
		Command:   []string{"-m", "PyInstaller", "--distpath"},
	},
	Py2exe: {
		Kind:        Py2exe,
		Family:      Freeze,
		OutputDir:   "dist",
		LibraryName: "library.zip",
		Command:     []string{"py2exe", "--dist-dir"},
		ScriptName:  "setup.py",
		Hint:        "python -m py2exe.build_exe -W setup.py hello.py",
	},
	Py2app: {
		Kind:        Py2app,
		Family:      Freeze,
		OutputDir:   "dist",
		LibraryName: "library.zip",
		Command:     []string{"py2app", "--dist-dir"},
		ScriptName:  "setup.py",
		Hint:        "vi setup.py",
	},
	CxFreeze: {
		Kind:        CxFreeze,
		Family:      Freeze,
		OutputDir:   "build/exe.{platform}-{version}",
		LibraryName: "python{version_nodot}.zip",
		Command:     []string{"build", "--build-exe"},
		ScriptName:  "setup.py",
		Hint:        "cxfreeze-quickstart",
	},
}

// Lookup returns the descriptor registered for kind.
func Lookup(kind Kind) (Descriptor, error) {
	d, ok := registry[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("unsupported backend %q (choose one of %s)", kind, strings.Join(Names(), ", "))
	}
	d.Command = append([]string(nil), d.Command...)
	return d, nil
}

// Names lists the registered backend kinds in a stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// NeedsInterpreter reports whether Resolve needs interpreter details.
func (d Descriptor) NeedsInterpreter() bool {
	return strings.Contains(d.OutputDir, "{") || strings.Contains(d.LibraryName, "{")
}

// Resolve returns a copy of d with interpreter placeholders filled in.
func (d Descriptor) Resolve(py Interpreter) Descriptor {
	r := strings.NewReplacer(
		"{platform}", py.Platform,
		"{version}", py.Version,
		"{version_nodot}", strings.ReplaceAll(py.Version, ".", ""),
	)
	d.OutputDir = r.Replace(d.OutputDir)
	d.LibraryName = r.Replace(d.LibraryName)
	d.Command = append([]string(nil), d.Command...)
	return d
}

// Interpreter describes the Python used to run the backend.
type Interpreter struct {
	Platform string // e.g. linux-x86_64
	Version  string // major.minor
}

const probeScript = "import sys, sysconfig; print(sysconfig.get_platform()); print('%d.%d' % sys.version_info[:2])"

// Probe asks python for its platform tag and version.
func Probe(ctx context.Context, r runner.Runner, python []string) (Interpreter, error) {
	args := append(append([]string(nil), python...), "-c", probeScript)
	out, err := r.Output(ctx, runner.Command{Args: args})
	if err != nil {
		return Interpreter{}, fmt.Errorf("probe python interpreter: %w", err)
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return Interpreter{}, fmt.Errorf("probe python interpreter: unexpected output %q", string(out))
	}
	return Interpreter{Platform: lines[0], Version: lines[1]}, nil
}
