package docker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ---- FS helpers ----

func absOr(p, fallback string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return fallback
}

// ---- Redaction ----

func isSecretKey(k string) bool {
	k = strings.ToUpper(k)
	return strings.Contains(k, "PASSWORD") ||
		strings.Contains(k, "PASS") ||
		strings.Contains(k, "TOKEN") ||
		strings.Contains(k, "SECRET") ||
		k == "DOCKER_AUTH_CONFIG" ||
		k == "AWS_SECRET_ACCESS_KEY" ||
		k == "AWS_SESSION_TOKEN" ||
		k == "GOOGLE_APPLICATION_CREDENTIALS"
}

// secretBuildArgValues returns the values of build args whose names look
// like credentials, for redaction in logged command lines.
func secretBuildArgValues(args [][2]string) []string {
	var out []string
	for _, kv := range args {
		if isSecretKey(kv[0]) && kv[1] != "" {
			out = append(out, kv[1])
		}
	}
	return out
}

// MaskSecretArgs returns KEY=VALUE args with credential-looking values
// replaced, for printing.
func MaskSecretArgs(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if ok && v != "" && isSecretKey(k) {
			a = k + "=[REDACTED]"
		}
		out[i] = a
	}
	return out
}

// ---- KEY=VALUE parsing ----

func splitPairs(in []string) [][2]string {
	out := make([][2]string, 0, len(in))
	for _, s := range in {
		k, v, _ := strings.Cut(s, "=")
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, [2]string{k, v})
		}
	}
	return out
}

// ---- Tag normalization / validation ----

var tagAllowed = regexp.MustCompile(`^[a-z0-9_.-]{1,128}$`)

func cleanTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	// normalize common offenders early
	repl := []struct{ from, to string }{
		{"/", "-"},
		{" ", "-"},
		{"+", "-"},
	}
	for _, r := range repl {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	// collapse multiple hyphens
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	// trim to Docker's max tag length
	if len(s) > 128 {
		s = s[:128]
	}
	return s
}

func validateTag(tag string) bool {
	return tagAllowed.MatchString(tag)
}

// validateRef checks a repo[:tag] reference the way the engine would reject it.
func validateRef(ref string) error {
	if strings.ToLower(ref) != ref || strings.ContainsAny(ref, " \t\n") {
		return fmt.Errorf("invalid ref %q (must be lowercase, no spaces)", ref)
	}
	repo, tag := splitRef(ref)
	if repo == "" {
		return fmt.Errorf("invalid ref %q (empty repository)", ref)
	}
	if tag != "" && !validateTag(tag) {
		return fmt.Errorf("invalid ref %q (bad tag %q)", ref, tag)
	}
	return nil
}

// splitRef splits "host:5000/org/app:tag" into repository and tag. A colon
// before the last slash belongs to the registry host.
func splitRef(ref string) (repo, tag string) {
	i := strings.LastIndex(ref, ":")
	if i < 0 || i < strings.LastIndex(ref, "/") {
		return ref, ""
	}
	return ref[:i], ref[i+1:]
}

// dedupRefs preserves insertion order.
func dedupRefs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
