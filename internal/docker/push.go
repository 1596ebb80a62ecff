// internal/docker/push.go
//
// Publishes the bootstrap image to a registry.
// - Logs in with the password on stdin, tags the built image under every
//   planned ref, pushes each, logs out.
// - Respects dry-run through the runner: commands are printed, not executed.
//
// A failed push leaves already-pushed tags in place.

package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Deploy logs into the registry and pushes opts.Source under every ref in opts.Refs.
func (c *CLI) Deploy(ctx context.Context, opts DeployOptions) error {
	refs := dedupRefs(opts.Refs)
	if len(refs) == 0 {
		return errors.New("Deploy: no refs to push")
	}
	if strings.TrimSpace(opts.Source) == "" {
		return errors.New("Deploy: source image is empty")
	}
	if opts.Username == "" {
		return fmt.Errorf("%w: REGISTRY_USER is empty", ErrMissingCredentials)
	}
	if opts.Password == "" {
		return fmt.Errorf("%w: REGISTRY_PASS is empty", ErrMissingCredentials)
	}

	if err := c.Login(ctx, opts.Registry, opts.Username, opts.Password); err != nil {
		return err
	}
	if opts.Logout && !c.DryRun {
		defer c.Logout(ctx, opts.Registry)
	}

	for _, r := range refs {
		if r != opts.Source {
			if err := c.TagImage(ctx, opts.Source, r); err != nil {
				return err
			}
		}
		if err := c.PushImage(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Login authenticates against registry ("" for the engine default).
func (c *CLI) Login(ctx context.Context, registry, user, password string) error {
	args := []string{"login", "--username", user, "--password-stdin"}
	if registry != "" {
		args = append(args, registry)
	}
	cmd := c.cmd(args...)
	cmd.Stdin = strings.NewReader(password + "\n")
	cmd.Redact = []string{password}
	if err := c.Exec.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%s login failed: %w", c.Binary, err)
	}
	return nil
}

// Logout runs logout, but doesn't fail the pipeline if it errors.
func (c *CLI) Logout(ctx context.Context, registry string) {
	args := []string{"logout"}
	if registry != "" {
		args = append(args, registry)
	}
	if err := c.run(ctx, args...); err != nil {
		c.Log.Warn("logout failed", "registry", registry, "err", err)
	}
}

// TagImage adds dst as a name for src.
func (c *CLI) TagImage(ctx context.Context, src, dst string) error {
	if err := validateRef(dst); err != nil {
		return fmt.Errorf("tag: %w", err)
	}
	if err := c.run(ctx, "tag", src, dst); err != nil {
		return fmt.Errorf("tag %s %s: %w", src, dst, err)
	}
	return nil
}

// PushImage pushes a single ref.
func (c *CLI) PushImage(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	c.Log.Info("pushing image", "ref", ref)
	if err := c.run(ctx, "push", ref); err != nil {
		return fmt.Errorf("push %s: %w", ref, err)
	}
	return nil
}
