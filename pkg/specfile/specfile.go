// Package specfile generates and patches PyInstaller .spec files so the
// bundler picks up protected scripts instead of the originals.
package specfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"armor-tools/go/pkg/fsx"
)

// AnchorPrefix starts the statement that builds the module archive. The
// patch block is inserted right before the first line with this prefix.
const AnchorPrefix = "pyz = PYZ(a.pure"

// PatchedSuffix is inserted between the stem and the extension of the
// patched file name.
const PatchedSuffix = "-patched"

// ErrUnsupportedFormat is returned when a spec has no anchor line.
var ErrUnsupportedFormat = errors.New("unsupported spec file, no PYZ line found")

// PatchedPath returns the sibling path the patched spec is written to.
func PatchedPath(specPath string) string {
	ext := filepath.Ext(specPath)
	return strings.TrimSuffix(specPath, ext) + PatchedSuffix + ext
}

// Patch reads specPath, inserts the redirection block before the module
// archive statement and writes the result to PatchedPath(specPath). The
// original file is never modified. protectedDir holds the protected scripts
// and must be absolute.
func Patch(specPath, protectedDir, entry string) (string, error) {
	content, err := os.ReadFile(specPath)
	if err != nil {
		return "", fmt.Errorf("read spec file: %w", err)
	}
	lines := splitLines(content)

	anchor := -1
	for i, line := range lines {
		if strings.HasPrefix(line, AnchorPrefix) {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return "", fmt.Errorf("%s: %w", specPath, ErrUnsupportedFormat)
	}

	block := patchBlock(protectedDir, entry)
	patched := make([]string, 0, len(lines)+len(block))
	patched = append(patched, lines[:anchor]...)
	patched = append(patched, block...)
	patched = append(patched, lines[anchor:]...)

	info, err := os.Stat(specPath)
	if err != nil {
		return "", err
	}
	out := PatchedPath(specPath)
	if err := fsx.WriteFileAtomic(out, []byte(strings.Join(patched, "")), info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("write patched spec file: %w", err)
	}
	return filepath.Clean(out), nil
}

// patchBlock returns newline-terminated lines that point the entry script
// record at the protected entry, and every pure module found under the first
// search path at protectedDir.
func patchBlock(protectedDir, entry string) []string {
	module := strings.TrimSuffix(entry, filepath.Ext(entry))
	return []string{
		"\n",
		"# Patched by armor-packer\n",
		fmt.Sprintf("a.scripts[-1] = '%s', r'%s', 'PYSOURCE'\n", module, filepath.Join(protectedDir, entry)),
		"for i in range(len(a.pure)):\n",
		"    if a.pure[i][1].startswith(a.pathex[0]):\n",
		fmt.Sprintf("        a.pure[i] = a.pure[i][0], a.pure[i][1].replace(a.pathex[0], r'%s'), a.pure[i][2]\n", protectedDir),
		"# Patch end.\n",
		"\n",
		"\n",
	}
}

// splitLines splits content into lines that keep their terminators.
func splitLines(content []byte) []string {
	var lines []string
	r := bufio.NewReader(bytes.NewReader(content))
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err != nil {
			break
		}
	}
	return lines
}
