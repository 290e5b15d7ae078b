package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/containerd/containerd/v2/pkg/shim"

	"github.com/MarcinKonowalczyk/runbf/cli"
	bfshim "github.com/MarcinKonowalczyk/runbf/shim"
)

func main() {
	// The shim re-executes itself in interpreter mode to run the task's
	// script. Signals keep their default action there so Kill works.
	if args, ok := bfshim.InterpreterArgs(os.Args[1:]); ok {
		os.Exit(cli.Main(context.Background(), args, os.Stdin, os.Stdout, os.Stderr))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	shim.Run(ctx, bfshim.NewManager(bfshim.RuntimeName))
}
