// internal/executil/executil.go
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
)

// Cmd describes one external process invocation.
type Cmd struct {
	Name  string
	Args  []string
	Dir   string
	Env   map[string]string // appended to the inherited environment
	Stdin io.Reader

	// Redact lists argument values replaced with [REDACTED] when the
	// command line is echoed.
	Redact []string
}

// String returns the printable, shell-quoted command line with redactions applied.
func (c Cmd) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = redact(a, c.Redact)
	}
	if len(args) == 0 {
		return c.Name
	}
	return c.Name + " " + ShellQuoteArgs(args)
}

// Runner runs external commands. Exec is the real implementation; tests
// substitute a recorder.
type Runner interface {
	// Run executes cmd with stdout/stderr inherited.
	Run(ctx context.Context, cmd Cmd) error
	// Output executes cmd and returns its trimmed stdout.
	Output(ctx context.Context, cmd Cmd) (string, error)
}

// Exec runs commands on the host. With DryRun set, commands are logged and
// never started.
type Exec struct {
	DryRun bool
	Log    *log.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// New returns an Exec writing to the process stdout/stderr.
func New(dryRun bool, logger *log.Logger) *Exec {
	if logger == nil {
		logger = log.Default()
	}
	return &Exec{DryRun: dryRun, Log: logger, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes cmd with inherited stdout/stderr.
func (e *Exec) Run(ctx context.Context, cmd Cmd) error {
	_, err := e.runCore(ctx, cmd, false)
	return err
}

// Output executes cmd capturing stdout. In dry-run mode it returns "".
func (e *Exec) Output(ctx context.Context, cmd Cmd) (string, error) {
	return e.runCore(ctx, cmd, true)
}

func (e *Exec) runCore(ctx context.Context, c Cmd, capture bool) (string, error) {
	fullCmd := c.String()
	prefix := ""
	if c.Dir != "" {
		prefix = " in " + c.Dir
	}

	if e.DryRun {
		e.logger().Info(fmt.Sprintf("[DRY RUN%s] %s", prefix, fullCmd))
		return "", nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var out bytes.Buffer
	if capture {
		cmd.Stdout = &out
	} else {
		cmd.Stdout = e.stdout()
	}
	cmd.Stderr = e.stderr()

	e.logger().Debug(fmt.Sprintf("Running%s: %s", prefix, fullCmd))
	if err := cmd.Run(); err != nil {
		// context cancellations/timeouts show clearly
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("command canceled: %s", fullCmd)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("command timed out: %s", fullCmd)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				return "", &ExitError{Cmd: fullCmd, Code: status.ExitStatus(), Err: err}
			}
		}
		return "", fmt.Errorf("failed to run command: %s: %w", fullCmd, err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (e *Exec) logger() *log.Logger {
	if e.Log == nil {
		return log.Default()
	}
	return e.Log
}

func (e *Exec) stdout() io.Writer {
	if e.Stdout == nil {
		return os.Stdout
	}
	return e.Stdout
}

func (e *Exec) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Cmd  string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command failed (exit=%d): %s: %v", e.Code, e.Cmd, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ShellQuoteArgs returns a printable, shell-safe representation of args.
func ShellQuoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\n\"'`$\\*?[]{}()<>|&;") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

func redact(arg string, secrets []string) string {
	for _, s := range secrets {
		if s != "" && strings.Contains(arg, s) {
			arg = strings.ReplaceAll(arg, s, "[REDACTED]")
		}
	}
	return arg
}
