// Package bundle exports a packed distribution as a zstd-compressed tarball.
package bundle

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"armor-tools/go/pkg/fsx"
	"armor-tools/go/pkg/logbowl"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/valyala/gozstd"
)

// Result describes a written archive.
type Result struct {
	Path    string
	Entries int
	SHA256  string
}

// Create writes every path under dir that matches none of excludes into a
// .tar.zst at outPath. Patterns are doublestar globs relative to dir; a
// matching directory is skipped with its contents. outPath itself is never
// archived.
func Create(log logbowl.Logger, dir, outPath string, excludes []string) (Result, error) {
	absOut, err := filepath.Abs(outPath)
	if err != nil {
		return Result{}, err
	}
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(pattern) {
			return Result{}, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	log.Info("bundle", "archive", "progress", "Creating distribution archive", "dir", dir, "archive", absOut)
	res := Result{Path: absOut}
	hash := sha256.New()
	err = fsx.WriteAtomic(absOut, 0644, func(w io.Writer) error {
		zw := gozstd.NewWriter(io.MultiWriter(w, hash))
		defer zw.Release()
		tw := tar.NewWriter(zw)

		n, err := writeTree(log, tw, dir, absOut, excludes)
		if err != nil {
			return err
		}
		res.Entries = n
		if err := tw.Close(); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return Result{}, fmt.Errorf("create archive %s: %w", absOut, err)
	}
	res.SHA256 = hex.EncodeToString(hash.Sum(nil))
	log.Info("bundle", "archive", "success", "Distribution archive written", "archive", absOut, "entries", res.Entries, "sha256", res.SHA256)
	return res, nil
}

func writeTree(log logbowl.Logger, tw *tar.Writer, dir, skip string, excludes []string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && isOutput(abs, skip) {
			return nil
		}
		rel = filepath.ToSlash(rel)

		for _, pattern := range excludes {
			if match, _ := doublestar.Match(pattern, rel); match {
				log.Debug("bundle", "exclude", "skip", "Excluding path based on pattern", "path", rel, "pattern", pattern)
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		count++
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(tw, path)
	})
	return count, err
}

// isOutput reports whether path is the archive being written or the temp
// file it is staged in.
func isOutput(path, out string) bool {
	if path == out {
		return true
	}
	return filepath.Dir(path) == filepath.Dir(out) &&
		strings.HasPrefix(filepath.Base(path), "."+filepath.Base(out)+".tmp-")
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
