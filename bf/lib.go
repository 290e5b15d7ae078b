package bf

import (
	"context"
	"io"
)

// Run executes source once with the given streams.
func Run(ctx context.Context, source []byte, input io.Reader, output io.Writer, opts ...Option) error {
	return NewInterpreter(source, input, output, opts...).Run(ctx)
}
