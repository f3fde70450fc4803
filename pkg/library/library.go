// Package library rewrites the compressed module library produced by freeze
// backends, replacing compiled modules with protected ones while keeping the
// member order the backend's loader relies on.
package library

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"armor-tools/go/pkg/fsx"
	"armor-tools/go/pkg/logbowl"
)

// Merger merges protected modules into a library archive.
type Merger struct {
	Log      logbowl.Logger
	Compiler Compiler
}

// Merge replaces the members of archivePath with their protected
// counterparts from protectedDir. The archive is unpacked into a staging
// directory beside it, the protected files are laid over the extracted
// members and compiled there, and the members are written back in their
// original order. protectedDir is only read. On error archivePath is left as
// it was.
func (m *Merger) Merge(ctx context.Context, protectedDir, archivePath string) error {
	m.Log.Info("archive", "update", "progress", "Updating library archive", "archive", archivePath, "protected", protectedDir)

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("library archive: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(archivePath), "."+filepath.Base(archivePath)+".merge-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	headers, comment, err := extract(archivePath, staging)
	if err != nil {
		return err
	}
	m.Log.Debug("archive", "extract", "success", "Extracted library members", "count", len(headers), "staging", staging)

	sources, err := overlay(protectedDir, staging)
	if err != nil {
		return fmt.Errorf("stage protected output: %w", err)
	}

	if len(sources) > 0 {
		m.Log.Info("archive", "compile", "progress", "Compiling protected modules", "count", len(sources))
		if err := m.Compiler.Compile(ctx, sources); err != nil {
			return fmt.Errorf("compile protected modules: %w", err)
		}
	}

	err = fsx.WriteAtomic(archivePath, info.Mode().Perm(), func(w io.Writer) error {
		return writeMembers(w, headers, comment, staging)
	})
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", archivePath, err)
	}
	m.Log.Info("archive", "update", "success", "Library archive updated", "archive", archivePath, "members", len(headers))
	return nil
}

// overlay copies every file under dir into staging, replacing extracted
// members of the same path, and returns the staged Python sources.
func overlay(dir, staging string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(staging, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := fsx.CopyFile(path, target); err != nil {
			return err
		}
		if strings.HasSuffix(strings.ToLower(rel), ".py") {
			sources = append(sources, target)
		}
		return nil
	})
	return sources, err
}

func extract(archivePath, dest string) ([]zip.FileHeader, string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, "", fmt.Errorf("open library archive: %w", err)
	}
	defer zr.Close()

	headers := make([]zip.FileHeader, 0, len(zr.File))
	for _, f := range zr.File {
		headers = append(headers, f.FileHeader)

		target, err := memberPath(dest, f.Name)
		if err != nil {
			return nil, "", err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, "", err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return nil, "", fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return headers, zr.Comment, nil
}

func memberPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	cleanDest := filepath.Clean(dest)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(filepath.Separator)) {
		return "", fmt.Errorf("zip slip detected in library archive: %s", name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeMembers(w io.Writer, headers []zip.FileHeader, comment, dir string) error {
	zw := zip.NewWriter(w)
	if comment != "" {
		if err := zw.SetComment(comment); err != nil {
			return err
		}
	}
	for _, h := range headers {
		hdr := &zip.FileHeader{
			Name:           h.Name,
			Comment:        h.Comment,
			Method:         h.Method,
			Modified:       h.Modified,
			ExternalAttrs:  h.ExternalAttrs,
			CreatorVersion: h.CreatorVersion,
		}
		wr, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if strings.HasSuffix(h.Name, "/") {
			continue
		}
		if err := copyMember(wr, filepath.Join(dir, filepath.FromSlash(h.Name))); err != nil {
			return fmt.Errorf("write member %s: %w", h.Name, err)
		}
	}
	return zw.Close()
}

func copyMember(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Member is one entry of a library archive.
type Member struct {
	Name   string
	Size   uint64
	Method uint16
}

// Members lists the entries of the archive at path in stored order.
func Members(path string) ([]Member, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	members := make([]Member, 0, len(zr.File))
	for _, f := range zr.File {
		members = append(members, Member{Name: f.Name, Size: f.UncompressedSize64, Method: f.Method})
	}
	return members, nil
}
