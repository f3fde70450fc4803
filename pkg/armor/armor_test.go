package armor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"armor-tools/go/pkg/logbowl"
	"armor-tools/go/pkg/runner"
	"armor-tools/go/pkg/runner/runnertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCommands(t *testing.T) {
	fake := &runnertest.Fake{}
	tool := &Tool{Log: logbowl.Discard(), Runner: fake, Command: []string{"python3", "-m", "pyarmor"}}
	ctx := context.Background()

	require.NoError(t, tool.Init(ctx, "/src", "app.py", "/build/obf"))
	require.NoError(t, tool.Configure(ctx, "/build/obf", "app.py"))
	require.NoError(t, tool.Build(ctx, "/build/obf"))
	require.NoError(t, tool.Obfuscate(ctx, "/out/obf/dist", []string{"--advanced", "2"}, "/src/app.py"))

	require.Len(t, fake.Commands, 4)
	assert.Equal(t, []string{"python3", "-m", "pyarmor", "init", "--type", "app", "--src", "/src", "--entry", "app.py", "/build/obf"}, fake.Commands[0].Args)
	assert.Equal(t, []string{"python3", "-m", "pyarmor", "config", "--runtime-path", "", "--manifest",
		"global-include *.py,prune build, prune dist,exclude app.py pytransform.py", "/build/obf"}, fake.Commands[1].Args)
	assert.Equal(t, []string{"python3", "-m", "pyarmor", "build", "/build/obf"}, fake.Commands[2].Args)
	assert.Equal(t, []string{"python3", "-m", "pyarmor", "obfuscate", "-r", "-O", "/out/obf/dist", "--advanced", "2", "/src/app.py"}, fake.Commands[3].Args)
}

func TestToolWrapsFailure(t *testing.T) {
	fake := &runnertest.Fake{Handler: func(ctx context.Context, cmd runner.Command) ([]byte, error) {
		return nil, &runner.CommandError{Args: cmd.Args, ExitCode: 2, Output: "license expired"}
	}}
	tool := &Tool{Log: logbowl.Discard(), Runner: fake, Command: []string{"pyarmor"}}

	err := tool.Build(context.Background(), "/build/obf")
	var cmdErr *runner.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 2, cmdErr.ExitCode)
	assert.Contains(t, err.Error(), "protection tool build")
}

func TestCopyRuntimeFiles(t *testing.T) {
	dist := t.TempDir()
	dest := t.TempDir()
	for _, name := range []string{"app.py", "pytransform.py", "pytransform.key", "license.lic", "_pytransform.so", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dist, name), []byte(name), 0644))
	}

	copied, err := CopyRuntimeFiles(logbowl.Discard(), dist, dest)
	require.NoError(t, err)

	assert.Equal(t, []string{"pytransform.key", "license.lic", "_pytransform.so"}, copied)
	for _, name := range copied {
		assert.FileExists(t, filepath.Join(dest, name))
	}
	assert.NoFileExists(t, filepath.Join(dest, "pytransform.py"))
	assert.NoFileExists(t, filepath.Join(dest, "app.py"))
}

func TestProjectDist(t *testing.T) {
	assert.Equal(t, filepath.Join("build", "obf", "dist"), ProjectDist(filepath.Join("build", "obf")))
}
