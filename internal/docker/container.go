package docker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// RunContainer starts a detached, named container and returns its ID.
func (c *CLI) RunContainer(ctx context.Context, opts RunOptions) (string, error) {
	if opts.Image == "" {
		return "", errors.New("RunContainer: image is required")
	}
	args := []string{"run", "-d"}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.Network != "" {
		args = append(args, "--network", opts.Network)
		if opts.Name != "" {
			args = append(args, "--network-alias", opts.Name)
		}
	}
	for _, p := range opts.Ports {
		args = append(args, "-p", p)
	}
	for _, kv := range opts.Env {
		args = append(args, "-e", kv[0]+"="+kv[1])
	}
	args = append(args, opts.Image)

	c.Log.Info("starting container", "name", opts.Name, "image", opts.Image)
	id, err := c.output(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", opts.Image, err)
	}
	if c.DryRun {
		id = "dry-run-" + opts.Name
	}
	return id, nil
}

// ContainerExists reports whether a container with this name or ID exists,
// running or not.
func (c *CLI) ContainerExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := c.inspect(ctx, "container", "inspect", "--format", "{{.Id}}", name)
	return ok, err
}

// ContainerRunning reports whether the container is in the running state.
func (c *CLI) ContainerRunning(ctx context.Context, name string) (bool, error) {
	out, ok, err := c.inspect(ctx, "container", "inspect", "--format", "{{.State.Running}}", name)
	if err != nil || !ok {
		return false, err
	}
	return out == "true", nil
}

// StopContainer stops the container, waiting up to timeout before SIGKILL.
func (c *CLI) StopContainer(ctx context.Context, name string, timeout time.Duration) error {
	c.Log.Info("stopping container", "name", name)
	secs := int(timeout / time.Second)
	if err := c.run(ctx, "stop", "-t", strconv.Itoa(secs), name); err != nil {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	return nil
}

// RemoveContainer removes the container.
func (c *CLI) RemoveContainer(ctx context.Context, name string, force bool) error {
	c.Log.Info("removing container", "name", name)
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	if err := c.run(ctx, append(args, name)...); err != nil {
		return fmt.Errorf("rm %s: %w", name, err)
	}
	return nil
}

// ContainerLogs returns the last lines of the container's stdout.
func (c *CLI) ContainerLogs(ctx context.Context, name string, tail int) (string, error) {
	return c.output(ctx, "logs", "--tail", strconv.Itoa(tail), name)
}

// CreateNetwork creates a bridge network. The engine allows duplicate
// network names, which breaks container DNS, so an existing network with
// the same name is an error.
func (c *CLI) CreateNetwork(ctx context.Context, name string) error {
	out, err := c.output(ctx, "network", "ls", "--quiet", "--filter", "name=^"+name+"$")
	if err != nil {
		return fmt.Errorf("network ls: %w", err)
	}
	if out != "" {
		// Usually left behind by an interrupted run.
		return fmt.Errorf("%w: %s (remove it with `%s network rm %s`)", ErrNetworkExists, name, c.Binary, name)
	}
	c.Log.Info("creating network", "name", name)
	if err := c.run(ctx, "network", "create", "--driver", "bridge", name); err != nil {
		return fmt.Errorf("network create %s: %w", name, err)
	}
	return nil
}

// RemoveNetwork removes the network.
func (c *CLI) RemoveNetwork(ctx context.Context, name string) error {
	c.Log.Info("removing network", "name", name)
	if err := c.run(ctx, "network", "rm", name); err != nil {
		return fmt.Errorf("network rm %s: %w", name, err)
	}
	return nil
}
