package cli

import (
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"bootci/internal/config"
	"bootci/internal/docker"
	"bootci/internal/runtime"
)

// planDoc is what `bootci plan` prints. Durations are strings and build
// args are masked.
type planDoc struct {
	Engine   string    `yaml:"engine"`
	Image    string    `yaml:"image"`
	Branch   string    `yaml:"branch"`
	Parallel int       `yaml:"parallel"`
	DryRun   bool      `yaml:"dry_run"`
	Legs     []planLeg `yaml:"legs"`
}

type planLeg struct {
	Variant string            `yaml:"variant"`
	Base    config.ImageSpec  `yaml:"base"`
	Example *config.ImageSpec `yaml:"example,omitempty"`
	Smoke   *planSmoke        `yaml:"smoke,omitempty"`
	Deploy  planDeploy        `yaml:"deploy"`
}

type planSmoke struct {
	Mode      config.SmokeMode `yaml:"mode"`
	Container string           `yaml:"container"`
	Ports     string           `yaml:"ports"`
	URL       string           `yaml:"url"`
	Grace     string           `yaml:"grace"`
	Timeout   string           `yaml:"timeout"`
	Network   string           `yaml:"network,omitempty"`
	Script    []string         `yaml:"script,omitempty"`
	Checks    []config.Check   `yaml:"checks,omitempty"`
}

type planDeploy struct {
	Enabled bool     `yaml:"enabled"`
	Reason  string   `yaml:"reason"`
	Latest  bool     `yaml:"latest"`
	Refs    []string `yaml:"refs,omitempty"`
	Error   string   `yaml:"error,omitempty"`
}

func (a *App) newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan [variant...]",
		Short: "Print the resolved matrix as YAML without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(buildPlan(s)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func buildPlan(s *session) planDoc {
	doc := planDoc{
		Engine:   s.cfg.Engine,
		Image:    s.cfg.Image,
		Branch:   s.ci.Branch,
		Parallel: s.cfg.Parallel,
		DryRun:   s.cfg.DryRun,
	}
	enabled, reason := runtime.ShouldDeploy(s.ci, s.cfg.Deploy)

	for _, leg := range s.legs {
		pl := planLeg{
			Variant: leg.Variant,
			Base:    maskSpec(leg.Base),
			Deploy:  planDeploy{Enabled: enabled, Reason: reason, Latest: leg.Latest},
		}
		if leg.Smoke.Mode != config.SmokeNone {
			example := maskSpec(leg.Example)
			pl.Example = &example
			pl.Smoke = &planSmoke{
				Mode:      leg.Smoke.Mode,
				Container: leg.Smoke.ContainerName,
				Ports:     portMapping(leg.Smoke),
				URL:       leg.Smoke.URL,
				Grace:     leg.Smoke.Grace.String(),
				Timeout:   leg.Smoke.Timeout.String(),
				Network:   leg.Smoke.Network,
				Script:    leg.ScriptArgs,
				Checks:    leg.Smoke.Checks,
			}
		}
		if p, err := docker.PlanTags(s.cfg.Image, leg, s.cfg.Deploy); err != nil {
			pl.Deploy.Error = err.Error()
		} else {
			pl.Deploy.Refs = p.Refs
		}
		doc.Legs = append(doc.Legs, pl)
	}
	return doc
}

func maskSpec(spec config.ImageSpec) config.ImageSpec {
	spec.BuildArgs = docker.MaskSecretArgs(spec.BuildArgs)
	return spec
}

func portMapping(s config.SmokeConfig) string {
	return strconv.Itoa(s.Port) + ":" + strconv.Itoa(s.ContainerPort)
}
