package packer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"armor-tools/go/pkg/backend"
)

// Options is the raw input of one packaging run.
type Options struct {
	Kind backend.Kind
	// Entry is the path of the entry script.
	Entry string
	// Setup is the build script (freeze family) or .spec file (bundler
	// family). Its directory becomes the build directory.
	Setup string
	// Output is the directory for the final distribution.
	Output   string
	Options  []string
	XOptions []string
	Clean    bool
}

// Request is the resolved, validated form of Options. All paths are
// absolute.
type Request struct {
	Backend   backend.Descriptor
	SourceDir string
	Entry     string
	BuildDir  string
	// Script is the build script or .spec path.
	Script   string
	Output   string
	Options  []string
	XOptions []string
	Clean    bool
}

// NewRequest resolves o against the backend descriptor d, which must already
// be resolved for the target interpreter.
func NewRequest(o Options, d backend.Descriptor) (Request, error) {
	if strings.TrimSpace(o.Entry) == "" {
		return Request{}, fmt.Errorf("entry script is required")
	}
	entryPath, err := filepath.Abs(o.Entry)
	if err != nil {
		return Request{}, fmt.Errorf("resolve entry script: %w", err)
	}
	if info, err := os.Stat(entryPath); err != nil {
		return Request{}, fmt.Errorf("entry script: %w", err)
	} else if info.IsDir() {
		return Request{}, fmt.Errorf("entry script %s is a directory", entryPath)
	}

	req := Request{
		Backend:   d,
		SourceDir: filepath.Dir(entryPath),
		Entry:     filepath.Base(entryPath),
		Options:   append([]string(nil), o.Options...),
		XOptions:  append([]string(nil), o.XOptions...),
		Clean:     o.Clean,
	}

	scriptName := ""
	if o.Setup == "" {
		req.BuildDir = req.SourceDir
	} else {
		setupPath, err := filepath.Abs(o.Setup)
		if err != nil {
			return Request{}, fmt.Errorf("resolve build script: %w", err)
		}
		req.BuildDir = filepath.Dir(setupPath)
		scriptName = filepath.Base(setupPath)
	}
	if scriptName == "" {
		scriptName = defaultScript(d, req.Entry)
	}
	req.Script = filepath.Join(req.BuildDir, scriptName)
	req.Output = ResolveOutput(o.Output, req.BuildDir, d)
	return req, nil
}

// ResolveOutput returns the output directory: the backend default under
// buildDir when output is empty, output itself when absolute, and output
// joined to buildDir otherwise.
func ResolveOutput(output, buildDir string, d backend.Descriptor) string {
	switch {
	case output == "":
		output = filepath.Join(buildDir, filepath.FromSlash(d.OutputDir))
	case !filepath.IsAbs(output):
		output = filepath.Join(buildDir, output)
	}
	return filepath.Clean(output)
}

func defaultScript(d backend.Descriptor, entry string) string {
	if d.Family == backend.Bundler {
		return strings.TrimSuffix(entry, filepath.Ext(entry)) + ".spec"
	}
	return d.ScriptName
}
