package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"armor-tools/go/pkg/logbowl"
	"armor-tools/go/pkg/packer"
	"armor-tools/go/pkg/runner"
	"armor-tools/go/pkg/runner/runnertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand(a)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, newApp(), "version")
	require.NoError(t, err)
	assert.Equal(t, "armor-packer version dev (commit: none, built: unknown)\n", out)
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "armorpack.toml")
	writeFile(t, path, "type = \"py2exe\"\n")
	t.Setenv("ARMORPACK_PYARMOR", "python3 -m pyarmor")

	out, _, err := execute(t, newApp(), "config", "--config", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# "+path+"\n"))
	assert.Contains(t, out, "py2exe")
	assert.Contains(t, out, "python3 -m pyarmor")
}

func TestInfoCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "zeta.pyc", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("1234"))
	require.NoError(t, err)
	w, err = zw.Create("alpha.pyc")
	require.NoError(t, err)
	_, err = w.Write([]byte("12"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out, _, err := execute(t, newApp(), "info", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"NAME", "SIZE", "METHOD"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"zeta.pyc", "4", "stored"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"alpha.pyc", "2", "deflated"}, strings.Fields(lines[2]))
}

func TestInfoMissingLibrary(t *testing.T) {
	_, _, err := execute(t, newApp(), "info", filepath.Join(t.TempDir(), "nope.zip"))
	assert.Error(t, err)
}

// bundlerFake simulates the protection tool and PyInstaller.
func bundlerFake(t *testing.T) *runnertest.Fake {
	return &runnertest.Fake{Handler: func(ctx context.Context, cmd runner.Command) ([]byte, error) {
		args := cmd.Args
		switch {
		case args[0] == "pyarmor" && args[1] == "obfuscate":
			for _, name := range []string{"app.py", "pytransform.py", "pytransform.key", "license.lic", "_pytransform.so"} {
				writeFile(t, filepath.Join(args[4], name), "protected")
			}
		case slices.Contains(args, "--specpath"):
			dir := args[slices.Index(args, "--specpath")+1]
			name := args[slices.Index(args, "--name")+1]
			writeFile(t, filepath.Join(dir, name+".spec"), "a = Analysis(['app.py'])\npyz = PYZ(a.pure)\n")
		case slices.Contains(args, "PyInstaller"):
			out := args[slices.Index(args, "--distpath")+1]
			writeFile(t, filepath.Join(out, "app", "app.bin"), "binary")
		}
		return nil, nil
	}}
}

func TestPackCommand(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "app.py"), "print('hello')\n")
	archive := filepath.Join(t.TempDir(), "app.tar.zst")

	fake := bundlerFake(t)
	a := newApp()
	a.newRunner = func(logbowl.Logger) runner.Runner { return fake }

	_, _, err := execute(t, a, "pack",
		"--python", "python", "--pyarmor", "pyarmor",
		"-e", `--onefile --name "hello world"`,
		"-x", "--advanced 1",
		"--archive", archive,
		filepath.Join(src, "app.py"))
	require.NoError(t, err)

	obf, ok := fake.Find(1, "obfuscate")
	require.True(t, ok)
	assert.Equal(t, []string{"--advanced", "1"}, obf.Args[5:7])

	last := fake.Commands[len(fake.Commands)-1]
	out := filepath.Join(src, "dist")
	assert.Equal(t, []string{"python", "-m", "PyInstaller", "--distpath", out, "--onefile", "--name", "hello world", "-y",
		filepath.Join(src, "app-patched.spec")}, last.Args)

	assert.FileExists(t, archive)
}

func TestPackCommandMissingSetup(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "app.py"), "print('hello')\n")

	fake := &runnertest.Fake{}
	a := newApp()
	a.newRunner = func(logbowl.Logger) runner.Runner { return fake }

	_, _, err := execute(t, a, "pack", "-t", "py2exe", "--python", "python", filepath.Join(src, "app.py"))
	var missing *packer.MissingBuildScriptError
	require.ErrorAs(t, err, &missing)
	assert.Empty(t, fake.Commands)
}

func TestPackCommandRejectsInput(t *testing.T) {
	src := t.TempDir()
	entry := filepath.Join(src, "app.py")
	writeFile(t, entry, "print('hello')\n")

	cases := []struct {
		name string
		args []string
		want string
	}{
		{name: "unterminated quote", args: []string{"-e", `"--onefile`}, want: "-e/--options"},
		{name: "unknown backend", args: []string{"-t", "nuitka"}, want: "unsupported backend"},
		{name: "no script", args: nil, want: "accepts 1 arg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newApp()
			a.newRunner = func(logbowl.Logger) runner.Runner { return &runnertest.Fake{} }
			args := append([]string{"pack"}, tc.args...)
			if tc.args != nil {
				args = append(args, entry)
			}
			_, _, err := execute(t, a, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	log := logbowl.New("test", logbowl.Options{Format: "text", Output: &buf})

	reportError(log, &packer.MissingBuildScriptError{Path: "/src/setup.py", Hint: "cxfreeze-quickstart"})
	assert.Contains(t, buf.String(), "/src/setup.py")
	assert.Contains(t, buf.String(), "cxfreeze-quickstart")

	buf.Reset()
	reportError(log, &runner.CommandError{Args: []string{"python", "setup.py"}, ExitCode: 3})
	assert.Contains(t, buf.String(), "exit_code=3")
	assert.Contains(t, buf.String(), "python setup.py")
}
