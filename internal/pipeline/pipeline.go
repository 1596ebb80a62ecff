// Package pipeline runs the variant matrix: for every leg, build the base
// image, build the example image on top of it, smoke test it, and deploy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"bootci/internal/config"
	"bootci/internal/docker"
	"bootci/internal/executil"
	"bootci/internal/runtime"
)

// Engine builds and publishes images.
type Engine interface {
	BuildImage(ctx context.Context, opts *docker.BuildOptions) error
	Deploy(ctx context.Context, opts docker.DeployOptions) error
}

// Smoker runs the smoke step of one leg.
type Smoker interface {
	Run(ctx context.Context, leg config.Leg) error
}

// Status is the outcome of one step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records one step of a leg.
type StepResult struct {
	Step     runtime.Step
	Status   Status
	Reason   string
	Err      error
	Duration time.Duration
}

// Result records one leg.
type Result struct {
	Variant  string
	Steps    []StepResult
	Err      error
	Duration time.Duration
}

// Step returns the result for s, if s was part of the leg's flow.
func (r Result) Step(s runtime.Step) (StepResult, bool) {
	for _, sr := range r.Steps {
		if sr.Step == s {
			return sr, true
		}
	}
	return StepResult{}, false
}

// Runner executes legs.
type Runner struct {
	Config  *config.Config
	Context runtime.Context
	Engine  Engine
	Smoke   Smoker
	Log     *log.Logger
}

// Run executes every leg with at most Config.Parallel legs at once. Legs are
// independent: a failed leg never stops or cancels another. Results are in
// the order of legs.
func (r *Runner) Run(ctx context.Context, legs []config.Leg, flow runtime.Flow) []Result {
	results := make([]Result, len(legs))

	limit := r.Config.Parallel
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, leg := range legs {
		g.Go(func() error {
			results[i] = r.RunLeg(ctx, leg, flow)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunLeg runs the steps of flow in order. The first failure marks every
// later step skipped.
func (r *Runner) RunLeg(ctx context.Context, leg config.Leg, flow runtime.Flow) Result {
	logger := r.logger().With("variant", leg.Variant)
	res := Result{Variant: leg.Variant}
	start := time.Now()

	logger.Info("leg started", "flow", flow)
	for _, step := range runtime.Steps {
		if !flow.Includes(step) {
			continue
		}
		if res.Err != nil {
			res.Steps = append(res.Steps, StepResult{Step: step, Status: StatusSkipped, Reason: "earlier step failed"})
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Err = err
			res.Steps = append(res.Steps, StepResult{Step: step, Status: StatusSkipped, Reason: "canceled"})
			continue
		}

		stepStart := time.Now()
		sr := r.runStep(ctx, logger, leg, step)
		sr.Step = step
		sr.Duration = time.Since(stepStart)
		res.Steps = append(res.Steps, sr)

		switch sr.Status {
		case StatusFailed:
			res.Err = fmt.Errorf("%s: %w", step, sr.Err)
			logger.Error("step failed", "step", step, "err", sr.Err)
		case StatusSkipped:
			logger.Info("step skipped", "step", step, "reason", sr.Reason)
		default:
			logger.Info("step passed", "step", step, "took", sr.Duration.Round(time.Millisecond))
		}
	}
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) runStep(ctx context.Context, logger *log.Logger, leg config.Leg, step runtime.Step) StepResult {
	var err error
	switch step {
	case runtime.StepBuildBase:
		err = r.Engine.BuildImage(ctx, docker.OptionsFromSpec(leg.Base, r.labels(leg)))
	case runtime.StepBuildExample:
		if leg.Smoke.Mode == config.SmokeNone {
			return StepResult{Status: StatusSkipped, Reason: "smoke disabled"}
		}
		err = r.Engine.BuildImage(ctx, docker.OptionsFromSpec(leg.Example, nil))
	case runtime.StepSmoke:
		if leg.Smoke.Mode == config.SmokeNone {
			return StepResult{Status: StatusSkipped, Reason: "smoke disabled"}
		}
		err = r.Smoke.Run(ctx, leg)
	case runtime.StepDeploy:
		return r.deploy(ctx, logger, leg)
	default:
		err = fmt.Errorf("unknown step %q", step)
	}
	if err != nil {
		return StepResult{Status: StatusFailed, Err: err}
	}
	return StepResult{Status: StatusPassed}
}

func (r *Runner) deploy(ctx context.Context, logger *log.Logger, leg config.Leg) StepResult {
	d := r.Config.Deploy
	ok, reason := runtime.ShouldDeploy(r.Context, d)
	if !ok {
		return StepResult{Status: StatusSkipped, Reason: reason}
	}

	plan, err := docker.PlanTags(r.Config.Image, leg, d)
	if err != nil {
		return StepResult{Status: StatusFailed, Err: err}
	}
	logger.Info("deploying", "refs", plan.Refs, "reason", reason)

	if r.Config.DryRun && (d.Username == "" || d.Password == "") {
		logger.Warn("[DRY RUN] registry credentials not set; would push", "refs", plan.Refs)
		return StepResult{Status: StatusPassed, Reason: "dry run"}
	}

	err = r.Engine.Deploy(ctx, docker.DeployOptions{
		Registry: d.Registry,
		Username: d.Username,
		Password: d.Password,
		Source:   plan.Source,
		Refs:     plan.Refs,
		Logout:   d.Logout,
	})
	if err != nil {
		return StepResult{Status: StatusFailed, Err: err}
	}
	return StepResult{Status: StatusPassed, Reason: reason}
}

// labels are the provenance labels put on the base image.
func (r *Runner) labels(leg config.Leg) [][2]string {
	return [][2]string{
		{"org.opencontainers.image.revision", r.Context.SHA},
		{"org.opencontainers.image.version", r.Config.Deploy.Version},
		{"org.opencontainers.image.ref.name", r.Context.Branch},
		{"io.bootci.variant", leg.Variant},
	}
}

func (r *Runner) logger() *log.Logger {
	if r.Log == nil {
		return log.Default()
	}
	return r.Log
}

// Failed returns the legs that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, res := range results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins the errors of every failed leg, or returns nil.
func Err(results []Result) error {
	var errs []error
	for _, res := range Failed(results) {
		errs = append(errs, fmt.Errorf("variant %s: %w", res.Variant, res.Err))
	}
	return errors.Join(errs...)
}

// ExitCode is the process exit status for results: 0 when every leg passed,
// the exit status of the command that failed the first failed leg, or 1
// when that failure was not a command (a smoke assertion, a config error).
func ExitCode(results []Result) int {
	failed := Failed(results)
	if len(failed) == 0 {
		return 0
	}
	var exitErr *executil.ExitError
	if errors.As(failed[0].Err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
