// Package runnertest provides a recording runner.Runner for tests.
package runnertest

import (
	"context"

	"armor-tools/go/pkg/runner"
)

// HandlerFunc simulates one external command.
type HandlerFunc func(ctx context.Context, cmd runner.Command) ([]byte, error)

// Fake records every command it receives and delegates to Handler when set.
type Fake struct {
	Handler  HandlerFunc
	Commands []runner.Command
}

func (f *Fake) Run(ctx context.Context, cmd runner.Command) error {
	_, err := f.Output(ctx, cmd)
	return err
}

func (f *Fake) Output(ctx context.Context, cmd runner.Command) ([]byte, error) {
	f.Commands = append(f.Commands, runner.Command{Args: append([]string(nil), cmd.Args...), Dir: cmd.Dir})
	if f.Handler == nil {
		return nil, nil
	}
	return f.Handler(ctx, cmd)
}

// Find returns the first recorded command whose argument at position i
// equals arg.
func (f *Fake) Find(i int, arg string) (runner.Command, bool) {
	for _, c := range f.Commands {
		if len(c.Args) > i && c.Args[i] == arg {
			return c, true
		}
	}
	return runner.Command{}, false
}
