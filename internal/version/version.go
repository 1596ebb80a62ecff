package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed X.Y.Z release, optionally with a pre-release suffix.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string // e.g. "rc.1"; empty for final releases
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		s += "-" + v.PreRelease
	}
	return s
}

// Parse parses a version string in the format "X.Y.Z"
func Parse(versionStr string) (Version, error) {
	parts := strings.Split(versionStr, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version format: expected X.Y.Z, got %s", versionStr)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major version: %w", err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor version: %w", err)
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return Version{}, fmt.Errorf("invalid patch version: %w", err)
	}

	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// ParseTag is like Parse but accepts a leading "v" and a "-pre" suffix,
// as found on git tags ("v1.4.0", "1.4.0-rc.2").
func ParseTag(tag string) (Version, error) {
	core := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	pre := ""
	if i := strings.IndexByte(core, '-'); i >= 0 {
		core, pre = core[:i], core[i+1:]
		if pre == "" {
			return Version{}, fmt.Errorf("invalid version %q: empty pre-release", tag)
		}
	}
	v, err := Parse(core)
	if err != nil {
		return Version{}, fmt.Errorf("unable to parse version %q: %w", tag, err)
	}
	v.PreRelease = pre
	return v, nil
}

// SemverTags expands a version into the image tags a release is published
// under, most specific first: 1.2.3 -> [1.2.3 1.2 1].
// Pre-releases only get their full tag so they never move the 1.2 / 1 tags.
func SemverTags(v Version) []string {
	if v.PreRelease != "" {
		return []string{v.String()}
	}
	return []string{
		fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch),
		fmt.Sprintf("%d.%d", v.Major, v.Minor),
		strconv.Itoa(v.Major),
	}
}
