// Package cli wires configuration, the CI context and the pipeline into
// cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"bootci/internal/config"
	"bootci/internal/docker"
	"bootci/internal/executil"
	"bootci/internal/pipeline"
	"bootci/internal/runtime"
	"bootci/internal/smoke"
)

// VersionInfo is set from ldflags in main.
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// App is the bootci command tree with its flags.
type App struct {
	rootCmd *cobra.Command

	configPath string
	envFile    string
	verbose    bool
	dryRun     bool
	engine     string
	parallel   int

	// runner replaces the host command runner; tests set it.
	runner executil.Runner

	versionInfo VersionInfo
}

// New creates the application.
func New() *App {
	app := &App{envFile: ".env"}
	app.setupRootCmd()
	return app
}

// SetVersion sets what `bootci version` reports.
func (a *App) SetVersion(version, commit, date string) {
	a.versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

// Execute runs the command tree with fang's styling and signal handling.
func (a *App) Execute(ctx context.Context) error {
	return fang.Execute(
		ctx,
		a.rootCmd,
		fang.WithVersion(a.versionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "bootci",
		Short: "Build, smoke test and publish a Docker image matrix",
		Long: `bootci runs the CI pipeline of a base image published in several variants.

For every variant it builds the base image, builds an example application
image on top of it, runs the example and checks that it serves, then tags
and pushes the base image when the build is on the deploy branch.

Configuration is read from .bootci.yaml and overridden by environment
variables (VARIANT, REGISTRY_USER, REGISTRY_PASS, TAG_LATEST, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := a.rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default is ./"+config.FileName+")")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&a.dryRun, "dry-run", false, "print engine commands instead of running them")
	pf.StringVar(&a.engine, "engine", "", "container engine: docker or podman")
	pf.IntVarP(&a.parallel, "parallel", "p", 0, "legs run at once (default from config)")

	a.rootCmd.AddCommand(
		a.newFlowCmd("run", runtime.FlowFull, "Build, smoke test and deploy every variant"),
		a.newFlowCmd("build", runtime.FlowBuild, "Build the base and example images"),
		a.newFlowCmd("smoke", runtime.FlowSmoke, "Smoke test already built example images"),
		a.newFlowCmd("deploy", runtime.FlowDeploy, "Tag and push already built base images"),
		a.newPlanCmd(),
		a.newInitCmd(),
		a.newVersionCmd(),
	)
}

// session is everything a command needs after configuration is resolved.
type session struct {
	cfg    *config.Config
	ci     runtime.Context
	legs   []config.Leg
	logger *log.Logger
}

// load reads .env, the config file and flags, then expands the legs named
// in args.
func (a *App) load(cmd *cobra.Command, args []string) (*session, error) {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(config.LoadOptions{Path: a.configPath})
	if err != nil {
		return nil, err
	}
	if a.engine != "" {
		cfg.Engine = a.engine
	}
	if a.dryRun {
		cfg.DryRun = true
	}
	if a.parallel > 0 {
		cfg.Parallel = a.parallel
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	legs, err := cfg.Legs(args, nil)
	if err != nil {
		return nil, err
	}

	ci := runtime.LoadContext()
	ci.DryRun = ci.DryRun || cfg.DryRun

	return &session{
		cfg:    cfg,
		ci:     ci,
		legs:   legs,
		logger: newLogger(cmd.ErrOrStderr(), cfg.LogLevel),
	}, nil
}

func newLogger(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "bootci",
		ReportTimestamp: true,
	})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func (a *App) newRunner(s *session) *pipeline.Runner {
	var r executil.Runner = executil.New(s.cfg.DryRun, s.logger.WithPrefix("exec"))
	if a.runner != nil {
		r = a.runner
	}
	engine := docker.New(s.cfg.Engine, r, s.logger, s.cfg.DryRun)
	return &pipeline.Runner{
		Config:  s.cfg,
		Context: s.ci,
		Engine:  engine,
		Smoke: &smoke.Tester{
			Engine: engine,
			Exec:   r,
			Log:    s.logger.WithPrefix("smoke"),
			DryRun: s.cfg.DryRun,
		},
		Log: s.logger,
	}
}

func (a *App) newFlowCmd(use string, flow runtime.Flow, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [variant...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			s.ci.PrintSummary(out, s.cfg, flow)

			results := a.newRunner(s).Run(cmd.Context(), s.legs, flow)
			pipeline.Summary(out, results)

			if err := pipeline.Err(results); err != nil {
				return &ExitError{Code: pipeline.ExitCode(results), Err: err}
			}
			return nil
		},
	}
}
