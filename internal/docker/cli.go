// Package docker drives a Docker-compatible container CLI (docker or podman).
package docker

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"bootci/internal/executil"
)

// CLI issues engine commands through an executil.Runner.
type CLI struct {
	Binary string
	Exec   executil.Runner
	Log    *log.Logger
	DryRun bool
}

// New returns a CLI for binary ("docker" or "podman").
func New(binary string, r executil.Runner, logger *log.Logger, dryRun bool) *CLI {
	if binary == "" {
		binary = "docker"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CLI{Binary: binary, Exec: r, Log: logger.WithPrefix(binary), DryRun: dryRun}
}

func (c *CLI) cmd(args ...string) executil.Cmd {
	return executil.Cmd{Name: c.Binary, Args: args}
}

func (c *CLI) run(ctx context.Context, args ...string) error {
	return c.Exec.Run(ctx, c.cmd(args...))
}

func (c *CLI) output(ctx context.Context, args ...string) (string, error) {
	return c.Exec.Output(ctx, c.cmd(args...))
}

// inspect runs an inspect-style command: a non-zero exit means "absent"
// rather than failure.
func (c *CLI) inspect(ctx context.Context, args ...string) (string, bool, error) {
	out, err := c.output(ctx, args...)
	if err != nil {
		var exitErr *executil.ExitError
		if errors.As(err, &exitErr) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(out), true, nil
}
