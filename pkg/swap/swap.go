// Package swap temporarily replaces an entry script in a source tree with its
// protected variant while an external build runs, and restores the tree
// afterwards whatever the outcome.
package swap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"armor-tools/go/pkg/armor"
	"armor-tools/go/pkg/fsx"
	"armor-tools/go/pkg/logbowl"
)

const (
	// BackupSuffix is appended to the entry name while it is moved aside.
	BackupSuffix = ".armor.bak"
	// SupportModule is the runtime loader copied next to the protected entry.
	SupportModule = armor.LoaderModule
)

// InvokeFunc runs the wrapped build. workDir is the directory the build must
// run in.
type InvokeFunc func(ctx context.Context, workDir string) error

// Transaction describes one swap. It is not safe for concurrent use on the
// same SourceDir.
type Transaction struct {
	Log          logbowl.Logger
	SourceDir    string
	Entry        string
	WorkDir      string
	ProtectedDir string
}

// Run swaps the protected entry and the support module into SourceDir,
// calls invoke, then restores SourceDir. Restoration runs on every path and
// its errors are joined to the returned error.
func (t Transaction) Run(ctx context.Context, invoke InvokeFunc) (err error) {
	entryPath := filepath.Join(t.SourceDir, t.Entry)
	backupPath := entryPath + BackupSuffix
	protectedEntry := filepath.Join(t.ProtectedDir, t.Entry)
	supportPath := filepath.Join(t.SourceDir, SupportModule)

	if fsx.Exists(backupPath) {
		return fmt.Errorf("stale backup %s found; restore it to %s before packing again", backupPath, entryPath)
	}
	if fsx.Exists(supportPath) {
		return fmt.Errorf("%s already exists in %s", SupportModule, t.SourceDir)
	}

	var undo []func() error
	defer func() {
		for i := len(undo) - 1; i >= 0; i-- {
			if uerr := undo[i](); uerr != nil {
				t.Log.Error("swap", "restore", "error", "Failed to restore source tree", "error", uerr)
				err = errors.Join(err, uerr)
			}
		}
	}()

	t.Log.Debug("swap", "move", "progress", "Backing up entry script", "from", entryPath, "to", backupPath)
	if err := fsx.MoveFile(entryPath, backupPath); err != nil {
		return fmt.Errorf("back up entry script: %w", err)
	}
	undo = append(undo, func() error {
		if err := os.Remove(entryPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove protected entry: %w", err)
		}
		if err := fsx.MoveFile(backupPath, entryPath); err != nil {
			return fmt.Errorf("restore entry script from %s: %w", backupPath, err)
		}
		t.Log.Debug("swap", "restore", "success", "Entry script restored", "path", entryPath)
		return nil
	})

	// The protected tree stays intact so a later pack can reuse it.
	t.Log.Debug("swap", "copy", "progress", "Copying protected entry into source", "from", protectedEntry)
	if err := fsx.CopyFile(protectedEntry, entryPath); err != nil {
		return fmt.Errorf("copy protected entry: %w", err)
	}

	undo = append(undo, func() error {
		if err := os.Remove(supportPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", SupportModule, err)
		}
		return nil
	})
	if err := fsx.CopyFile(filepath.Join(t.ProtectedDir, SupportModule), supportPath); err != nil {
		return fmt.Errorf("copy %s: %w", SupportModule, err)
	}

	t.Log.Info("swap", "execute", "progress", "Running build with protected entry", "dir", t.WorkDir)
	return invoke(ctx, t.WorkDir)
}
