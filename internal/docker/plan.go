// internal/docker/plan.go
//
// The planner turns a resolved leg + deploy settings into the refs the
// bootstrap image is published under.
//
// Rules:
//   - always          → :<variant>
//   - version set     → :<version>-<variant>
//                        (semver: one tag per 1.2.3 / 1.2 / 1)
//   - latest leg      → :latest, plus bare :<version> tags when a version is set
//
// The same inputs always produce the same refs, so re-running a leg only
// overwrites tags.

package docker

import (
	"fmt"
	"strings"

	"bootci/internal/config"
	"bootci/internal/version"
)

// Plan is the output of the planner.
type Plan struct {
	Source string   // locally built image
	Refs   []string // fully-qualified repo:tag
}

// PlanTags computes the deploy refs for leg.
func PlanTags(image string, leg config.Leg, d config.DeployConfig) (Plan, error) {
	repo := strings.TrimRight(strings.TrimSpace(image), "/")
	if repo == "" {
		return Plan{}, fmt.Errorf("PlanTags: image is empty")
	}
	if reg := strings.TrimRight(d.Registry, "/"); reg != "" && !strings.HasPrefix(repo, reg+"/") {
		repo = reg + "/" + repo
	}

	var versions []string
	if v := strings.TrimSpace(d.Version); v != "" {
		if d.Semver {
			parsed, err := version.ParseTag(v)
			if err != nil {
				return Plan{}, fmt.Errorf("PlanTags: %w", err)
			}
			versions = version.SemverTags(parsed)
		} else {
			versions = []string{strings.TrimPrefix(v, "v")}
		}
	}

	var refs []string
	add := func(tag string) {
		tag = cleanTag(tag)
		if tag == "" || !validateTag(tag) {
			return
		}
		refs = append(refs, repo+":"+tag)
	}

	add(leg.Variant)
	for _, v := range versions {
		add(v + "-" + leg.Variant)
	}
	if leg.Latest {
		add("latest")
		for _, v := range versions {
			add(v)
		}
	}

	refs = dedupRefs(refs)
	if len(refs) == 0 {
		return Plan{}, fmt.Errorf("PlanTags: no valid tags for variant %q", leg.Variant)
	}
	return Plan{Source: leg.Base.Tag, Refs: refs}, nil
}
