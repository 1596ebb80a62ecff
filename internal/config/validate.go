package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"bootci/internal/version"
)

var variantName = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// Validate checks the definition before any command runs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Engine {
	case "docker", "podman":
	default:
		errs = append(errs, fmt.Errorf("engine: %q is not supported (must be 'docker' or 'podman')", c.Engine))
	}

	if strings.TrimSpace(c.Image) == "" {
		errs = append(errs, errors.New("image: required (set image or BOOTCI_IMAGE)"))
	}

	if len(c.Variants) == 0 {
		errs = append(errs, errors.New("variants: at least one variant is required (set variants, BOOTCI_VARIANTS or VARIANT)"))
	}
	seen := make(map[string]bool, len(c.Variants))
	for i, v := range c.Variants {
		if !variantName.MatchString(v.Name) {
			errs = append(errs, fmt.Errorf("variants[%d]: invalid name %q (lowercase letters, digits, '.', '_' and '-')", i, v.Name))
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Errorf("variants[%d]: duplicate name %q", i, v.Name))
		}
		seen[v.Name] = true
		if v.Port < 0 || v.Port > 65535 {
			errs = append(errs, fmt.Errorf("variants[%d]: port %d out of range", i, v.Port))
		}
		errs = append(errs, validateBuildArgs(fmt.Sprintf("variants[%d].build_args", i), v.BuildArgs)...)
	}

	errs = append(errs, validateImage("base", c.Base)...)
	if c.Smoke.Mode != SmokeNone {
		errs = append(errs, validateImage("example", c.Example)...)
	}
	errs = append(errs, c.Smoke.validate()...)

	if strings.TrimSpace(c.Deploy.Branch) == "" {
		errs = append(errs, errors.New("deploy.branch: required"))
	}
	if c.Deploy.Semver {
		if c.Deploy.Version == "" {
			errs = append(errs, errors.New("deploy.semver: requires deploy.version"))
		} else if _, err := version.ParseTag(c.Deploy.Version); err != nil {
			errs = append(errs, fmt.Errorf("deploy.version: %w", err))
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}

func validateImage(field string, s ImageSpec) []error {
	var errs []error
	if strings.TrimSpace(s.Dockerfile) == "" {
		errs = append(errs, fmt.Errorf("%s.dockerfile: required", field))
	}
	if strings.TrimSpace(s.Tag) == "" {
		errs = append(errs, fmt.Errorf("%s.tag: required", field))
	}
	if strings.TrimSpace(s.Context) == "" {
		errs = append(errs, fmt.Errorf("%s.context: required", field))
	}
	errs = append(errs, validateBuildArgs(field+".build_args", s.BuildArgs)...)
	for i, l := range s.Labels {
		if k, _, ok := strings.Cut(l, "="); !ok || k == "" {
			errs = append(errs, fmt.Errorf("%s.labels[%d]: %q is not KEY=VALUE", field, i, l))
		}
	}
	return errs
}

func validateBuildArgs(field string, args []string) []error {
	var errs []error
	for i, a := range args {
		if k, _, ok := strings.Cut(a, "="); !ok || k == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: %q is not KEY=VALUE", field, i, a))
		}
	}
	return errs
}

func (s SmokeConfig) validate() []error {
	var errs []error
	switch s.Mode {
	case SmokeNone:
		return nil
	case SmokeHTTP:
		for i, c := range s.Checks {
			if !strings.HasPrefix(c.Path, "/") {
				errs = append(errs, fmt.Errorf("smoke.checks[%d].path: %q must start with '/'", i, c.Path))
			}
			if c.Status != 0 && (c.Status < 100 || c.Status > 599) {
				errs = append(errs, fmt.Errorf("smoke.checks[%d].status: %d is not an HTTP status", i, c.Status))
			}
		}
	case SmokeScript:
		if strings.TrimSpace(s.Script) == "" {
			errs = append(errs, errors.New("smoke.script: required when smoke.mode is 'script'"))
		}
	default:
		return []error{fmt.Errorf("smoke.mode: %q is not supported (must be 'http', 'script' or 'none')", s.Mode)}
	}

	if strings.TrimSpace(s.ContainerName) == "" {
		errs = append(errs, errors.New("smoke.container_name: required"))
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("smoke.port: %d out of range", s.Port))
	}
	if s.ContainerPort < 1 || s.ContainerPort > 65535 {
		errs = append(errs, fmt.Errorf("smoke.container_port: %d out of range", s.ContainerPort))
	}
	if s.Grace < 0 {
		errs = append(errs, fmt.Errorf("smoke.grace: %s cannot be negative", s.Grace))
	}
	if s.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("smoke.timeout: %s must be positive", s.Timeout))
	}
	if strings.TrimSpace(s.URL) == "" {
		errs = append(errs, errors.New("smoke.url: required"))
	}
	return errs
}
