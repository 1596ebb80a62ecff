package config

import (
	"fmt"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// envOverrides maps environment variables to config field setters. They are
// the variables a CI matrix entry sets.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string) error
}{
	{
		envVar: "BOOTCI_ENGINE",
		apply: func(c *Config, v string) error {
			c.Engine = v
			return nil
		},
	},
	{
		envVar: "BOOTCI_IMAGE",
		apply: func(c *Config, v string) error {
			c.Image = v
			return nil
		},
	},
	{
		envVar: "BOOTCI_VARIANTS",
		apply: func(c *Config, v string) error {
			c.Variants = selectVariants(c, splitList(v))
			return nil
		},
	},
	{
		// VARIANT narrows the run to one matrix leg.
		envVar: "VARIANT",
		apply: func(c *Config, v string) error {
			c.Variants = selectVariants(c, []string{strings.TrimSpace(v)})
			return nil
		},
	},
	{
		envVar: "DOCKERFILE",
		apply: func(c *Config, v string) error {
			c.Base.Dockerfile = v
			return nil
		},
	},
	{
		envVar: "IMAGE_TAG",
		apply: func(c *Config, v string) error {
			c.Base.Tag = v
			return nil
		},
	},
	{
		// BUILD_ARGS holds shell words like "PYTHON_VERSION=3.6 DEBIAN=1".
		envVar: "BUILD_ARGS",
		apply: func(c *Config, v string) error {
			args, err := shell.Fields(v, nil)
			if err != nil {
				return fmt.Errorf("BUILD_ARGS: %w", err)
			}
			c.Base.BuildArgs = append(c.Base.BuildArgs, args...)
			return nil
		},
	},
	{
		envVar: "REGISTRY",
		apply: func(c *Config, v string) error {
			c.Deploy.Registry = v
			return nil
		},
	},
	{
		envVar: "REGISTRY_USER",
		apply: func(c *Config, v string) error {
			c.Deploy.Username = v
			return nil
		},
	},
	{
		envVar: "REGISTRY_PASS",
		apply: func(c *Config, v string) error {
			c.Deploy.Password = v
			return nil
		},
	},
	{
		envVar: "TAG_LATEST",
		apply: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("TAG_LATEST: %w", err)
			}
			c.Deploy.TagLatest = b
			return nil
		},
	},
	{
		envVar: "BOOTCI_VERSION",
		apply: func(c *Config, v string) error {
			c.Deploy.Version = v
			return nil
		},
	},
	{
		envVar: "BOOTCI_DRY_RUN",
		apply: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("BOOTCI_DRY_RUN: %w", err)
			}
			c.DryRun = b
			return nil
		},
	},
	{
		envVar: "BOOTCI_LOG_LEVEL",
		apply: func(c *Config, v string) error {
			c.LogLevel = v
			return nil
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	for _, override := range envOverrides {
		if val := getenv(override.envVar); val != "" {
			if err := override.apply(cfg, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// selectVariants keeps the configured entries named in names, in the given
// order, and adds bare entries for names the config does not declare.
func selectVariants(c *Config, names []string) []Variant {
	out := make([]Variant, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := c.variant(n); ok {
			out = append(out, v)
			continue
		}
		out = append(out, Variant{Name: n})
	}
	return out
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
