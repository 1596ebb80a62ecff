// internal/docker/options.go
//
// Adapts an expanded config.ImageSpec into BuildOptions. Provenance labels
// are passed in by the caller, which knows the CI context.

package docker

import "bootci/internal/config"

// OptionsFromSpec converts spec into BuildOptions tagged with spec.Tag.
// labels come before the image's own labels, which can override them.
func OptionsFromSpec(spec config.ImageSpec, labels [][2]string) *BuildOptions {
	all := make([][2]string, 0, len(labels)+len(spec.Labels))
	for _, kv := range labels {
		if kv[0] != "" && kv[1] != "" {
			all = append(all, kv)
		}
	}
	all = append(all, splitPairs(spec.Labels)...)

	return &BuildOptions{
		Dockerfile:  spec.Dockerfile,
		ContextPath: spec.Context,
		BuildArgs:   splitPairs(spec.BuildArgs),
		Labels:      all,
		CacheFrom:   spec.CacheFrom,
		FullRefs:    []string{spec.Tag},
		Target:      spec.Target,
		Pull:        spec.Pull,
		NoCache:     spec.NoCache,
	}
}
