package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Leg is the fully expanded definition of one matrix leg. Every template
// has been substituted; nothing in a Leg changes while it runs.
type Leg struct {
	Variant string `yaml:"variant"`

	// Latest reports whether this leg publishes the "latest" tag.
	Latest bool `yaml:"latest"`

	Base    ImageSpec   `yaml:"base"`
	Example ImageSpec   `yaml:"example"`
	Smoke   SmokeConfig `yaml:"smoke"`

	// ScriptArgs is Smoke.Script split into words.
	ScriptArgs []string `yaml:"script_args,omitempty"`

	// Vars are the template variables of this leg; the smoke script gets
	// them in its environment.
	Vars map[string]string `yaml:"-"`
}

// Legs expands the named variants, or the whole matrix when names is
// empty. getenv backs variables a template references that the leg does not
// define; nil means os.Getenv.
func (c *Config) Legs(names []string, getenv func(string) string) ([]Leg, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if len(names) == 0 {
		names = c.VariantNames()
	}

	legs := make([]Leg, 0, len(names))
	for _, n := range names {
		v, ok := c.variant(n)
		if !ok {
			return nil, fmt.Errorf("unknown variant %q (matrix: %s)", n, strings.Join(c.VariantNames(), ", "))
		}
		leg, err := c.resolve(v, len(names) == 1, getenv)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", n, err)
		}
		legs = append(legs, leg)
	}

	if err := c.checkLegs(legs); err != nil {
		return nil, err
	}
	return legs, nil
}

func (c *Config) resolve(v Variant, only bool, getenv func(string) string) (Leg, error) {
	vars := map[string]string{
		"VARIANT": v.Name,
		"IMAGE":   c.Image,
	}
	lookup := func(name string) string {
		if val, ok := vars[name]; ok {
			return val
		}
		return getenv(name)
	}

	port := c.Smoke.Port
	if v.Port > 0 {
		port = v.Port
	}
	vars["PORT"] = strconv.Itoa(port)

	base, err := expandSpec(c.Base, lookup)
	if err != nil {
		return Leg{}, fmt.Errorf("base: %w", err)
	}
	extra, err := expandAll(v.BuildArgs, lookup)
	if err != nil {
		return Leg{}, fmt.Errorf("build_args: %w", err)
	}
	base.BuildArgs = append(base.BuildArgs, extra...)
	vars["BASE_TAG"] = base.Tag
	vars["IMAGE_TAG"] = base.Tag

	example, err := expandSpec(c.Example, lookup)
	if err != nil {
		return Leg{}, fmt.Errorf("example: %w", err)
	}
	vars["EXAMPLE_TAG"] = example.Tag

	smoke := c.Smoke
	smoke.Port = port
	smoke.Checks = append([]Check(nil), c.Smoke.Checks...)
	if smoke.ContainerName, err = shell.Expand(c.Smoke.ContainerName, lookup); err != nil {
		return Leg{}, fmt.Errorf("smoke.container_name: %w", err)
	}
	vars["CONTAINER_NAME"] = smoke.ContainerName
	if smoke.URL, err = shell.Expand(c.Smoke.URL, lookup); err != nil {
		return Leg{}, fmt.Errorf("smoke.url: %w", err)
	}
	if smoke.Network, err = shell.Expand(c.Smoke.Network, lookup); err != nil {
		return Leg{}, fmt.Errorf("smoke.network: %w", err)
	}

	var script []string
	if c.Smoke.Mode == SmokeScript {
		if script, err = shell.Fields(c.Smoke.Script, lookup); err != nil {
			return Leg{}, fmt.Errorf("smoke.script: %w", err)
		}
		if len(script) == 0 {
			return Leg{}, errors.New("smoke.script: expands to an empty command")
		}
	}

	latest := v.Latest
	if c.Deploy.TagLatest {
		switch {
		case c.Deploy.LatestVariant != "":
			latest = latest || c.Deploy.LatestVariant == v.Name
		case only:
			latest = true
		}
	}

	leg := Leg{
		Variant:    v.Name,
		Latest:     latest,
		Base:       base,
		Example:    example,
		Smoke:      smoke,
		ScriptArgs: script,
		Vars:       vars,
	}
	if err := checkTag("base.tag", leg.Base.Tag); err != nil {
		return Leg{}, err
	}
	if c.Smoke.Mode != SmokeNone {
		if err := checkTag("example.tag", leg.Example.Tag); err != nil {
			return Leg{}, err
		}
	}
	return leg, nil
}

// checkLegs enforces invariants spanning legs of one run.
func (c *Config) checkLegs(legs []Leg) error {
	latest := 0
	for _, l := range legs {
		if l.Latest {
			latest++
		}
	}
	if latest > 1 {
		return errors.New("more than one variant publishes 'latest'; set deploy.latest_variant")
	}
	if c.Deploy.TagLatest && c.Deploy.LatestVariant == "" && len(legs) > 1 {
		return errors.New("tag_latest with several variants needs deploy.latest_variant")
	}

	if c.Parallel < 2 || c.Smoke.Mode == SmokeNone {
		return nil
	}
	names := make(map[string]string, len(legs))
	ports := make(map[int]string, len(legs))
	for _, l := range legs {
		if prev, ok := names[l.Smoke.ContainerName]; ok {
			return fmt.Errorf("variants %s and %s share container name %q; parallel legs need distinct names", prev, l.Variant, l.Smoke.ContainerName)
		}
		names[l.Smoke.ContainerName] = l.Variant
		if prev, ok := ports[l.Smoke.Port]; ok {
			return fmt.Errorf("variants %s and %s share host port %d; parallel legs need distinct ports", prev, l.Variant, l.Smoke.Port)
		}
		ports[l.Smoke.Port] = l.Variant
	}
	return nil
}

func expandSpec(s ImageSpec, lookup func(string) string) (ImageSpec, error) {
	var err error
	out := s
	if out.Dockerfile, err = shell.Expand(s.Dockerfile, lookup); err != nil {
		return ImageSpec{}, fmt.Errorf("dockerfile: %w", err)
	}
	if out.Context, err = shell.Expand(s.Context, lookup); err != nil {
		return ImageSpec{}, fmt.Errorf("context: %w", err)
	}
	if out.Tag, err = shell.Expand(s.Tag, lookup); err != nil {
		return ImageSpec{}, fmt.Errorf("tag: %w", err)
	}
	if out.Target, err = shell.Expand(s.Target, lookup); err != nil {
		return ImageSpec{}, fmt.Errorf("target: %w", err)
	}
	if out.BuildArgs, err = expandAll(s.BuildArgs, lookup); err != nil {
		return ImageSpec{}, fmt.Errorf("build_args: %w", err)
	}
	if out.Labels, err = expandAll(s.Labels, lookup); err != nil {
		return ImageSpec{}, fmt.Errorf("labels: %w", err)
	}
	if out.CacheFrom, err = expandAll(s.CacheFrom, lookup); err != nil {
		return ImageSpec{}, fmt.Errorf("cache_from: %w", err)
	}
	return out, nil
}

func expandAll(in []string, lookup func(string) string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		v, err := shell.Expand(s, lookup)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func checkTag(field, ref string) error {
	switch {
	case strings.TrimSpace(ref) == "":
		return fmt.Errorf("%s: expands to an empty reference", field)
	case strings.HasSuffix(ref, ":") || strings.HasPrefix(ref, ":"):
		return fmt.Errorf("%s: %q has an empty component; is a variable unset?", field, ref)
	}
	return nil
}
