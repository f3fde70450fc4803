package packer

import (
	"os"
	"path/filepath"
	"testing"

	"armor-tools/go/pkg/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOutput(t *testing.T) {
	build := filepath.Join(string(filepath.Separator), "work", "build")
	d, err := backend.Lookup(backend.Py2exe)
	require.NoError(t, err)

	cases := []struct {
		name   string
		output string
		want   string
	}{
		{name: "default", output: "", want: filepath.Join(build, "dist")},
		{name: "absolute", output: filepath.Join(string(filepath.Separator), "tmp", "out"), want: filepath.Join(string(filepath.Separator), "tmp", "out")},
		{name: "relative", output: filepath.Join("..", "out"), want: filepath.Join(string(filepath.Separator), "work", "out")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveOutput(tc.output, build, d))
		})
	}
}

func TestNewRequest(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	build := filepath.Join(root, "build")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.MkdirAll(build, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.py"), []byte("pass\n"), 0644))

	t.Run("setup script sets build dir", func(t *testing.T) {
		d, err := backend.Lookup(backend.Py2exe)
		require.NoError(t, err)
		req, err := NewRequest(Options{Entry: filepath.Join(src, "main.py"), Setup: filepath.Join(build, "make.py")}, d)
		require.NoError(t, err)
		assert.Equal(t, src, req.SourceDir)
		assert.Equal(t, "main.py", req.Entry)
		assert.Equal(t, build, req.BuildDir)
		assert.Equal(t, filepath.Join(build, "make.py"), req.Script)
		assert.Equal(t, filepath.Join(build, "dist"), req.Output)
	})

	t.Run("bundler default spec", func(t *testing.T) {
		d, err := backend.Lookup(backend.PyInstaller)
		require.NoError(t, err)
		req, err := NewRequest(Options{Entry: filepath.Join(src, "main.py"), Output: "out"}, d)
		require.NoError(t, err)
		assert.Equal(t, src, req.BuildDir)
		assert.Equal(t, filepath.Join(src, "main.spec"), req.Script)
		assert.Equal(t, filepath.Join(src, "out"), req.Output)
	})

	t.Run("missing entry", func(t *testing.T) {
		d, err := backend.Lookup(backend.Py2exe)
		require.NoError(t, err)
		_, err = NewRequest(Options{Entry: filepath.Join(src, "nope.py")}, d)
		assert.Error(t, err)
	})

	t.Run("empty entry", func(t *testing.T) {
		d, err := backend.Lookup(backend.Py2exe)
		require.NoError(t, err)
		_, err = NewRequest(Options{}, d)
		assert.Error(t, err)
	})
}
