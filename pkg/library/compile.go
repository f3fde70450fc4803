package library

import (
	"context"

	"armor-tools/go/pkg/runner"
)

// Compiler turns Python sources into bytecode files written beside them as
// <source>c.
type Compiler interface {
	Compile(ctx context.Context, sources []string) error
}

// compileBatch bounds the argument list of one interpreter run.
const compileBatch = 200

const compileScript = `import py_compile, sys
for s in sys.argv[1:]:
    py_compile.compile(s, s + 'c', doraise=True)
`

// PyCompiler compiles with py_compile in an external interpreter, so the
// bytecode matches the Python the backend bundles.
type PyCompiler struct {
	Runner runner.Runner
	Python []string
}

func (c *PyCompiler) Compile(ctx context.Context, sources []string) error {
	for start := 0; start < len(sources); start += compileBatch {
		end := min(start+compileBatch, len(sources))
		args := append(append([]string(nil), c.Python...), "-c", compileScript)
		args = append(args, sources[start:end]...)
		if err := c.Runner.Run(ctx, runner.Command{Args: args}); err != nil {
			return err
		}
	}
	return nil
}
