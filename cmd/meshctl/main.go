package main

import (
	"os"

	"github.com/roach88/meshctl/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		cli.Diagnostic(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
