package main

import (
	"context"
	"os"

	"github.com/canonical/dotrun-image/internal/cli"
	"github.com/canonical/dotrun-image/internal/console"
)

var version = "dev"

func main() {
	cli.SetVersion(version)

	if err := cli.Execute(context.Background(), os.Args[1:]); err != nil {
		console.NewStd().Error(err.Error())
		os.Exit(cli.ExitCode(err))
	}
}
