package specfile

import (
	"os"
	"path/filepath"
	"strings"
)

// runtimeData are the protection runtime files bundled next to the
// executable.
var runtimeData = []string{"license.lic", "pytransform.key", "_pytransform.*"}

// GenerateArgs returns the PyInstaller options that write a fresh spec to
// specPath. Both the original and the protected entry are passed as scripts
// so the .spec file analyses the original tree and records the protected entry
// last.
func GenerateArgs(specPath, protectedDir, sourceDir, entry string) []string {
	args := []string{"-y"}
	for _, name := range runtimeData {
		args = append(args, "--add-data", filepath.Join(protectedDir, name)+string(os.PathListSeparator)+".")
	}
	stem := strings.TrimSuffix(filepath.Base(specPath), filepath.Ext(specPath))
	args = append(args,
		"--specpath", filepath.Dir(specPath),
		"--name", stem,
		filepath.Join(sourceDir, entry),
		filepath.Join(protectedDir, entry),
	)
	return args
}
