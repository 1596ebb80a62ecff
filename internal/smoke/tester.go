package smoke

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"bootci/internal/config"
	"bootci/internal/docker"
	"bootci/internal/executil"
)

// teardownTimeout bounds cleanup after the leg's context is gone.
const teardownTimeout = 30 * time.Second

// Engine is the part of the container CLI the smoke step needs.
type Engine interface {
	RunContainer(ctx context.Context, opts docker.RunOptions) (string, error)
	ContainerExists(ctx context.Context, name string) (bool, error)
	ContainerRunning(ctx context.Context, name string) (bool, error)
	StopContainer(ctx context.Context, name string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, name string, force bool) error
	ContainerLogs(ctx context.Context, name string, tail int) (string, error)
	CreateNetwork(ctx context.Context, name string) error
	RemoveNetwork(ctx context.Context, name string) error
}

// Tester runs the smoke step of one leg.
type Tester struct {
	Engine Engine
	// Exec runs the external test runner in script mode.
	Exec   executil.Runner
	Client *http.Client
	Log    *log.Logger
	DryRun bool
	// LogTail is the number of container log lines shown on failure.
	LogTail int
}

// Run starts the example image, waits for it, runs the checks or the
// script, and always removes the container (and network) afterwards.
func (t *Tester) Run(ctx context.Context, leg config.Leg) (err error) {
	s := leg.Smoke
	if s.Mode == config.SmokeNone {
		return nil
	}
	logger := t.logger().With("variant", leg.Variant)
	name := s.ContainerName

	if s.Network != "" {
		if err := t.Engine.CreateNetwork(ctx, s.Network); err != nil {
			return err
		}
		defer func() {
			tctx, cancel := teardownContext(ctx)
			defer cancel()
			if rerr := t.Engine.RemoveNetwork(tctx, s.Network); rerr != nil {
				logger.Warn("network teardown failed", "network", s.Network, "err", rerr)
			}
		}()
	}

	if !t.DryRun {
		leaked, err := t.Engine.ContainerExists(ctx, name)
		if err != nil {
			return err
		}
		if leaked {
			logger.Warn("removing leftover container", "name", name)
			if err := t.Engine.RemoveContainer(ctx, name, true); err != nil {
				return err
			}
		}
	}

	started := false
	defer func() {
		tctx, cancel := teardownContext(ctx)
		defer cancel()
		t.teardown(tctx, logger, name, started, err != nil)
	}()

	id, err := t.Engine.RunContainer(ctx, docker.RunOptions{
		Name:    name,
		Image:   leg.Example.Tag,
		Ports:   []string{strconv.Itoa(s.Port) + ":" + strconv.Itoa(s.ContainerPort)},
		Network: s.Network,
	})
	if err != nil {
		return err
	}
	started = true
	logger.Debug("container started", "id", id)

	if t.DryRun {
		if s.Mode == config.SmokeScript {
			return RunScript(ctx, t.Exec, leg)
		}
		for _, c := range s.Checks {
			logger.Info("[DRY RUN] would check", "url", JoinURL(s.URL, c.Path), "contains", c.Contains)
		}
		return nil
	}

	logger.Info("waiting for container", "url", s.URL, "grace", s.Grace, "timeout", s.Timeout)
	err = WaitReady(ctx, s.URL, WaitOptions{
		Grace:   s.Grace,
		Timeout: s.Timeout,
		Client:  t.Client,
		Alive: func(ctx context.Context) error {
			running, err := t.Engine.ContainerRunning(ctx, name)
			if err != nil {
				return err
			}
			if !running {
				return fmt.Errorf("container %s exited", name)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSmokeFailed, err)
	}

	switch s.Mode {
	case config.SmokeScript:
		if err := RunScript(ctx, t.Exec, leg); err != nil {
			return fmt.Errorf("%w: %w", ErrSmokeFailed, err)
		}
	default:
		for _, c := range s.Checks {
			if err := CheckHTTP(ctx, t.Client, s.URL, c); err != nil {
				return fmt.Errorf("%w: %w", ErrSmokeFailed, err)
			}
			logger.Info("check passed", "path", c.Path)
		}
	}
	return nil
}

func (t *Tester) teardown(ctx context.Context, logger *log.Logger, name string, started, failed bool) {
	if failed && started && !t.DryRun {
		tail := t.LogTail
		if tail <= 0 {
			tail = 100
		}
		if out, err := t.Engine.ContainerLogs(ctx, name, tail); err == nil && out != "" {
			logger.Error("container output", "name", name, "logs", out)
		}
	}
	if started {
		if err := t.Engine.StopContainer(ctx, name, docker.DefaultStopTimeout); err != nil {
			logger.Warn("stop failed", "name", name, "err", err)
		}
	}
	if err := t.Engine.RemoveContainer(ctx, name, true); err != nil {
		logger.Warn("container teardown failed", "name", name, "err", err)
	}
}

func (t *Tester) logger() *log.Logger {
	if t.Log == nil {
		return log.Default()
	}
	return t.Log
}

func teardownContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
}
