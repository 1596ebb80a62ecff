// internal/docker/build.go
package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// BuildImage runs "<engine> build" for opts. Dockerfile and context are
// checked on disk unless the CLI is in dry-run mode.
func (c *CLI) BuildImage(ctx context.Context, opts *BuildOptions) error {
	if opts == nil {
		return errors.New("BuildImage: opts is nil")
	}
	if len(opts.FullRefs) == 0 {
		return errors.New("BuildImage: FullRefs must have at least one repo:tag")
	}

	df := strings.TrimSpace(opts.Dockerfile)
	if df == "" {
		df = "Dockerfile"
	}
	ctxPath := strings.TrimSpace(opts.ContextPath)
	if ctxPath == "" {
		ctxPath = "."
	}

	// Only validate filesystem when not in dry-run
	if !c.DryRun {
		if st, err := os.Stat(df); err != nil || st.IsDir() {
			return fmt.Errorf("BuildImage: Dockerfile %q not found or not a file", df)
		}
		if st, err := os.Stat(ctxPath); err != nil || !st.IsDir() {
			return fmt.Errorf("BuildImage: context %q not found or not a directory", ctxPath)
		}
	}

	refs := dedupRefs(opts.FullRefs)
	for _, r := range refs {
		if err := validateRef(r); err != nil {
			return fmt.Errorf("BuildImage: %w", err)
		}
	}

	args := []string{"build"}
	if c.Binary == "docker" {
		args = append(args, "--progress=plain")
	}
	for _, r := range refs {
		args = append(args, "-t", r)
	}
	args = append(args, "-f", df)
	if opts.Pull {
		args = append(args, "--pull")
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Target != "" {
		args = append(args, "--target", opts.Target)
	}
	for _, ref := range opts.CacheFrom {
		if ref == "" {
			continue
		}
		// A missing cache image only costs build time.
		if err := c.PullIfMissing(ctx, ref); err != nil {
			c.Log.Warn("cache image unavailable", "ref", ref, "err", err)
		}
		args = append(args, "--cache-from", ref)
	}
	for _, kv := range opts.Labels {
		if kv[0] != "" {
			args = append(args, "--label", kv[0]+"="+kv[1])
		}
	}
	for _, kv := range opts.BuildArgs {
		if kv[0] != "" {
			args = append(args, "--build-arg", kv[0]+"="+kv[1])
		}
	}
	args = append(args, ctxPath)

	c.Log.Info("build plan",
		"tags", strings.Join(refs, ","),
		"dockerfile", absOr(df, df),
		"context", absOr(ctxPath, ctxPath))

	cmd := c.cmd(args...)
	cmd.Redact = secretBuildArgValues(opts.BuildArgs)
	if err := c.Exec.Run(ctx, cmd); err != nil {
		return fmt.Errorf("build %s: %w", refs[0], err)
	}
	return nil
}

// ImageExists reports whether ref is present locally.
func (c *CLI) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, ok, err := c.inspect(ctx, "image", "inspect", "--format", "{{.Id}}", ref)
	return ok, err
}

// PullImage pulls ref from its registry.
func (c *CLI) PullImage(ctx context.Context, ref string) error {
	return c.run(ctx, "pull", ref)
}

// PullIfMissing pulls ref only when it is not already present locally.
func (c *CLI) PullIfMissing(ctx context.Context, ref string) error {
	if c.DryRun {
		return nil
	}
	ok, err := c.ImageExists(ctx, ref)
	if err != nil {
		return err
	}
	if ok {
		c.Log.Debug("image found", "ref", ref)
		return nil
	}
	c.Log.Info("pulling image", "ref", ref)
	return c.PullImage(ctx, ref)
}
