// bootci main entrypoint
//
// This binary runs as the whole CI job of a multi-variant base image: it
// reads the matrix from .bootci.yaml and the environment, builds each
// variant and its example application image, smoke tests the example, and
// pushes the base image from the deploy branch.
//
// Keep this file simple: everything lives in internal/cli.

package main

import (
	"context"
	"errors"
	"os"

	"bootci/internal/cli"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := cli.New()
	app.SetVersion(version, commit, date)

	if err := app.Execute(context.Background()); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
