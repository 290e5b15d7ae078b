package main

import (
	"context"
	"os"

	"github.com/MarcinKonowalczyk/runbf/cli"
)

func main() {
	os.Exit(cli.Main(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
