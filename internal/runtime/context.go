package runtime

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bootci/internal/config"
)

// Context captures the CI environment state the pipeline depends on.
// Travis, GitHub Actions and GitLab CI variables are understood.
type Context struct {
	Provider      string
	Branch        string
	SHA           string
	ShortSHA      string
	IsPullRequest bool
	IsTag         bool
	Tag           string
	BuildID       string
	DryRun        bool
}

// LoadContext constructs a Context from the process environment.
func LoadContext() Context {
	return LoadContextFrom(os.Getenv)
}

// LoadContextFrom constructs a Context from getenv.
func LoadContextFrom(getenv func(string) string) Context {
	provider := "local"
	switch {
	case getenv("TRAVIS") == "true":
		provider = "travis"
	case getenv("GITHUB_ACTIONS") == "true":
		provider = "github"
	case getenv("GITLAB_CI") == "true":
		provider = "gitlab"
	case getenv("CI") != "":
		provider = "ci"
	}

	tag := firstNonEmpty(getenv("TRAVIS_TAG"), getenv("CI_COMMIT_TAG"))
	if getenv("GITHUB_REF_TYPE") == "tag" {
		tag = firstNonEmpty(tag, getenv("GITHUB_REF_NAME"))
	}

	// On Travis PR builds TRAVIS_BRANCH is the target branch, so the PR
	// flag below is what keeps PRs into develop from deploying.
	branch := firstNonEmpty(
		getenv("BOOTCI_BRANCH"),
		getenv("TRAVIS_BRANCH"),
		getenv("GITHUB_HEAD_REF"),
		branchFromGitHub(getenv),
		getenv("CI_MERGE_REQUEST_SOURCE_BRANCH_NAME"),
		getenv("CI_COMMIT_BRANCH"),
		getenv("CI_COMMIT_REF_NAME"),
	)

	isPR := false
	if pr := strings.TrimSpace(getenv("TRAVIS_PULL_REQUEST")); pr != "" && pr != "false" {
		isPR = true
	}
	switch getenv("GITHUB_EVENT_NAME") {
	case "pull_request", "pull_request_target":
		isPR = true
	}
	if getenv("CI_MERGE_REQUEST_IID") != "" || getenv("CI_PIPELINE_SOURCE") == "merge_request_event" {
		isPR = true
	}

	sha := firstNonEmpty(getenv("TRAVIS_COMMIT"), getenv("GITHUB_SHA"), getenv("CI_COMMIT_SHA"), getenv("GIT_SHA"))
	short := getenv("CI_COMMIT_SHORT_SHA")
	if short == "" {
		if len(sha) >= 8 {
			short = sha[:8]
		} else {
			short = sha
		}
	}

	// Same spelling rules as the config's boolean env overrides.
	dryRun, _ := strconv.ParseBool(getenv("BOOTCI_DRY_RUN"))

	return Context{
		Provider:      provider,
		Branch:        branch,
		SHA:           sha,
		ShortSHA:      short,
		IsPullRequest: isPR,
		IsTag:         tag != "",
		Tag:           tag,
		BuildID:       firstNonEmpty(getenv("TRAVIS_BUILD_NUMBER"), getenv("GITHUB_RUN_ID"), getenv("CI_PIPELINE_ID")),
		DryRun:        dryRun,
	}
}

// branchFromGitHub returns GITHUB_REF_NAME only for branch refs.
func branchFromGitHub(getenv func(string) string) string {
	if getenv("GITHUB_REF_TYPE") == "branch" {
		return getenv("GITHUB_REF_NAME")
	}
	return ""
}

// ShouldDeploy is the deploy gate: the branch must equal the configured
// branch exactly and the build must not be a pull request build. The
// returned reason is suitable for logs either way.
func ShouldDeploy(c Context, d config.DeployConfig) (bool, string) {
	switch {
	case c.IsPullRequest:
		return false, "pull request build"
	case c.Branch == "":
		return false, "branch unknown"
	case c.Branch != d.Branch:
		return false, fmt.Sprintf("branch %q is not %q", c.Branch, d.Branch)
	}
	return true, fmt.Sprintf("branch %q", c.Branch)
}

// PrintSummary emits a scannable report of the run about to happen.
func (c Context) PrintSummary(w io.Writer, cfg *config.Config, flow Flow) {
	fmt.Fprintln(w, "CI Environment Summary")
	fmt.Fprintln(w, "----------------------")

	fmt.Fprintln(w, "Ref / Commit")
	fmt.Fprintf(w, "  Provider              : %s\n", c.Provider)
	fmt.Fprintf(w, "  Branch                : %s\n", formatOrNone(c.Branch))
	if c.IsTag {
		fmt.Fprintf(w, "  Tag                   : %s\n", c.Tag)
	}
	fmt.Fprintf(w, "  Commit Short SHA      : %s\n", formatOrNone(c.ShortSHA))
	fmt.Fprintf(w, "  Build                 : %s\n", formatOrNone(c.BuildID))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Pipeline")
	fmt.Fprintf(w, "  Flow                  : %s\n", flow)
	fmt.Fprintf(w, "  Engine                : %s\n", cfg.Engine)
	fmt.Fprintf(w, "  Image                 : %s\n", cfg.Image)
	fmt.Fprintf(w, "  Variants              : %s\n", formatOrNone(strings.Join(cfg.VariantNames(), ", ")))
	fmt.Fprintf(w, "  Smoke Mode            : %s\n", cfg.Smoke.Mode)
	fmt.Fprintln(w)

	deploy, reason := ShouldDeploy(c, cfg.Deploy)
	fmt.Fprintln(w, "Derived")
	fmt.Fprintf(w, "  Is Pull Request       : %s\n", mark(c.IsPullRequest))
	fmt.Fprintf(w, "  Deploy Branch         : %s\n", cfg.Deploy.Branch)
	fmt.Fprintf(w, "  Deploy                : %s (%s)\n", mark(deploy && flow.Includes(StepDeploy)), reason)
	fmt.Fprintf(w, "  Tag Latest            : %s\n", mark(cfg.Deploy.TagLatest))
	fmt.Fprintf(w, "  Dry Run Mode          : %s\n", mark(cfg.DryRun || c.DryRun))
	fmt.Fprintln(w)
}
