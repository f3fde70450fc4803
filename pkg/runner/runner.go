// Package runner executes external tools to completion and classifies the
// result by exit code.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"armor-tools/go/pkg/logbowl"
)

// Command is one external process invocation. Dir is the working directory
// of the child; the working directory of this process is never changed.
type Command struct {
	Args []string
	Dir  string
}

func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner runs external commands.
type Runner interface {
	// Run executes the command and returns a *CommandError on a non-zero exit.
	Run(ctx context.Context, cmd Command) error
	// Output executes the command and returns its standard output.
	Output(ctx context.Context, cmd Command) ([]byte, error)
}

// CommandError reports an external command that exited non-zero or could not
// be started. ExitCode is -1 in the latter case.
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	name := ""
	if len(e.Args) > 0 {
		name = e.Args[0]
	}
	if e.ExitCode < 0 {
		return fmt.Sprintf("run command %s: %v", name, e.Err)
	}
	return fmt.Sprintf("run command %s failed with exit code %d", name, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Exec runs commands with os/exec.
type Exec struct {
	Log logbowl.Logger
	// Verbose streams child output instead of capturing it.
	Verbose bool
	// Stdout and Stderr receive streamed output; default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// New returns an Exec whose verbosity follows the logger level.
func New(log logbowl.Logger) *Exec {
	return &Exec{Log: log, Verbose: log.Verbose()}
}

func (r *Exec) Run(ctx context.Context, c Command) error {
	if len(c.Args) == 0 {
		return errors.New("empty command")
	}
	r.Log.Info("command", "execute", "progress", "Running command", "cmd", c.String(), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir

	var output bytes.Buffer
	if r.Verbose {
		cmd.Stdout = orDefault(r.Stdout, os.Stdout)
		cmd.Stderr = orDefault(r.Stderr, os.Stderr)
	} else {
		cmd.Stdout = &output
		cmd.Stderr = &output
	}

	if err := cmd.Run(); err != nil {
		cmdErr := classify(c, err, output.String())
		if !r.Verbose && output.Len() > 0 {
			r.Log.Error("command", "execute", "failure", "Command output", "cmd", c.String(), "output", output.String())
		}
		return cmdErr
	}
	r.Log.Debug("command", "execute", "success", "Command finished", "cmd", c.String())
	return nil
}

func (r *Exec) Output(ctx context.Context, c Command) ([]byte, error) {
	if len(c.Args) == 0 {
		return nil, errors.New("empty command")
	}
	r.Log.Debug("command", "execute", "progress", "Running command", "cmd", c.String(), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, classify(c, err, stderr.String())
	}
	return out, nil
}

func classify(c Command, err error, output string) *CommandError {
	cmdErr := &CommandError{Args: c.Args, ExitCode: -1, Output: output, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	return cmdErr
}

func orDefault(w io.Writer, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
