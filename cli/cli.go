// Package cli runs a brainfuck source file from the command line. It backs
// both the bfi binary and the brainfuck mode of the containerd shim.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/containerd/log"

	"github.com/MarcinKonowalczyk/runbf/bf"
	"github.com/MarcinKonowalczyk/runbf/config"
)

const ProgramName = "bfi"

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/MarcinKonowalczyk/runbf/cli.debug=true'"`
var debug string

// Main parses args, runs the program they name and returns the exit code.
// Diagnostics go to stderr prefixed with the program name.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg := config.Default()
	cfg.Debug = debug != ""

	var filename, configPath string
	var strip bool

	flags := flag.NewFlagSet(ProgramName, flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&filename, "file", "", "brainfuck source file")
	flags.StringVar(&configPath, "config", "", "TOML or YAML config file")
	flags.BoolVar(&strip, "strip", false, "print the program without comments instead of running it")
	cfg.RegisterFlags(flags)

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if configPath != "" {
		if err := cfg.LoadFile(configPath); err != nil {
			fmt.Fprintf(stderr, "%s: %v.\n", ProgramName, err)
			return 1
		}
		// parse again so flags win over the file
		if err := flags.Parse(args); err != nil {
			return 2
		}
	}

	if filename == "" && flags.NArg() > 0 {
		filename = flags.Arg(0)
	}
	if filename == "" {
		fmt.Fprintf(stderr, "%s: Expected source file filename.\n", ProgramName)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "%s: %v.\n", ProgramName, err)
		return 1
	}
	if err := cfg.ApplyLogging(); err != nil {
		fmt.Fprintf(stderr, "%s: configuring logging: %v.\n", ProgramName, err)
		return 1
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		reason := err
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			reason = pathErr.Err
		}
		fmt.Fprintf(stderr, "%s: file '%s' open failed: %v.\n", ProgramName, filename, reason)
		return 1
	}

	out := bufio.NewWriter(stdout)

	if strip {
		out.Write(bf.PreLex(source))
		out.WriteByte('\n')
		return flush(out, stderr)
	}

	ctx = log.WithLogger(ctx, log.G(ctx).WithField("file", filename))
	if err := bf.Run(ctx, source, bufio.NewReader(stdin), out, cfg.Options()...); err != nil {
		// keep whatever the program printed before failing
		_ = out.Flush()
		fmt.Fprintf(stderr, "%s: %v.\n", ProgramName, err)
		return 1
	}
	return flush(out, stderr)
}

// flush writes out the buffered output. bufio errors are sticky, so this
// also reports any write that failed earlier.
func flush(out *bufio.Writer, stderr io.Writer) int {
	if err := out.Flush(); err != nil {
		fmt.Fprintf(stderr, "%s: writing output: %v.\n", ProgramName, err)
		return 1
	}
	return 0
}
