package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"bootci/internal/executil"
)

const testConfig = `
image: praekeltfoundation/django-bootstrap
variants:
  - name: py2
  - name: py3
    build_args: ["NPM_TOKEN=s3cret"]
smoke:
  grace: 2s
  timeout: 30s
deploy:
  tag_latest: true
  latest_variant: py3
`

// ciEnv clears everything the config and CI context read from the
// environment, then sets the branch.
func ciEnv(t *testing.T, branch string) {
	t.Helper()
	for _, k := range []string{
		"VARIANT", "BOOTCI_VARIANTS", "BOOTCI_ENGINE", "BOOTCI_IMAGE", "DOCKERFILE",
		"IMAGE_TAG", "BUILD_ARGS", "REGISTRY", "REGISTRY_USER", "REGISTRY_PASS",
		"TAG_LATEST", "BOOTCI_VERSION", "BOOTCI_DRY_RUN", "BOOTCI_LOG_LEVEL",
		"TRAVIS_BRANCH", "TRAVIS_PULL_REQUEST", "GITHUB_HEAD_REF", "GITHUB_EVENT_NAME",
		"CI_MERGE_REQUEST_IID", "CI_PIPELINE_SOURCE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("BOOTCI_BRANCH", branch)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".bootci.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app.envFile = ""
	app.rootCmd.SetOut(&out)
	app.rootCmd.SetErr(&errOut)
	app.rootCmd.SetArgs(args)
	err := app.rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	app := New()
	app.SetVersion("1.4.0", "abc123", "2026-10-01")

	out, err := execute(t, app, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bootci version 1.4.0")
	assert.Contains(t, out, "commit: abc123")
	assert.Equal(t, "1.4.0 (commit: abc123, built: 2026-10-01)", app.versionString())
	assert.Equal(t, "dev (built from source)", New().versionString())
}

func TestPlan(t *testing.T) {
	ciEnv(t, "develop")
	path := writeConfig(t, testConfig)

	out, err := execute(t, New(), "plan", "--config", path)
	require.NoError(t, err)

	var doc planDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "docker", doc.Engine)
	assert.Equal(t, "develop", doc.Branch)
	require.Len(t, doc.Legs, 2)

	py2, py3 := doc.Legs[0], doc.Legs[1]
	assert.Equal(t, "py2.dockerfile", py2.Base.Dockerfile)
	assert.Equal(t, "praekeltfoundation/django-bootstrap:py2", py2.Base.Tag)
	assert.Equal(t, "mysite:py2", py2.Example.Tag)
	assert.Equal(t, "2s", py2.Smoke.Grace)
	assert.Equal(t, "30s", py2.Smoke.Timeout)
	assert.Equal(t, "8000:8000", py2.Smoke.Ports)
	assert.True(t, py2.Deploy.Enabled)
	assert.Equal(t, []string{"praekeltfoundation/django-bootstrap:py2"}, py2.Deploy.Refs)

	assert.True(t, py3.Deploy.Latest)
	assert.Equal(t, []string{
		"praekeltfoundation/django-bootstrap:py3",
		"praekeltfoundation/django-bootstrap:latest",
	}, py3.Deploy.Refs)
	assert.Equal(t, []string{"NPM_TOKEN=[REDACTED]"}, py3.Base.BuildArgs)
	assert.NotContains(t, out, "s3cret")
}

func TestPlan_SelectsVariantsAndReportsGate(t *testing.T) {
	ciEnv(t, "feature/x")
	path := writeConfig(t, testConfig)

	out, err := execute(t, New(), "plan", "--config", path, "py3")
	require.NoError(t, err)

	var doc planDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Legs, 1)
	assert.Equal(t, "py3", doc.Legs[0].Variant)
	assert.False(t, doc.Legs[0].Deploy.Enabled)
	assert.Equal(t, `branch "feature/x" is not "develop"`, doc.Legs[0].Deploy.Reason)
}

func TestPlan_UnknownVariant(t *testing.T) {
	ciEnv(t, "develop")
	path := writeConfig(t, testConfig)

	_, err := execute(t, New(), "plan", "--config", path, "py4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown variant "py4"`)
}

func TestFlags_OverrideConfig(t *testing.T) {
	ciEnv(t, "develop")
	path := writeConfig(t, testConfig)

	out, err := execute(t, New(), "plan", "--config", path, "--engine", "podman", "--dry-run", "-p", "2", "py3")
	require.NoError(t, err)

	var doc planDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "podman", doc.Engine)
	assert.True(t, doc.DryRun)
	assert.Equal(t, 2, doc.Parallel)

	_, err = execute(t, New(), "plan", "--config", path, "--engine", "rkt")
	assert.Error(t, err)
}

func TestRun_DryRunOnDevelop(t *testing.T) {
	ciEnv(t, "develop")
	t.Setenv("REGISTRY_USER", "bot")
	t.Setenv("REGISTRY_PASS", "hunter2")
	path := writeConfig(t, testConfig)

	rec := &executil.Recorder{}
	app := New()
	app.runner = rec

	out, err := execute(t, app, "run", "--config", path, "--dry-run", "py3")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed")

	lines := rec.Lines()
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "docker build --progress=plain -t praekeltfoundation/django-bootstrap:py3 -f py3.dockerfile"))
	assert.True(t, strings.HasPrefix(lines[1], "docker build --progress=plain -t mysite:py3 -f example/py3.dockerfile"))
	assert.Contains(t, lines, "docker run -d --name mysite-py3 -p 8000:8000 mysite:py3")
	assert.Contains(t, lines, "docker rm -f mysite-py3")
	assert.Contains(t, lines, "docker login --username bot --password-stdin")
	assert.Contains(t, lines, "docker push praekeltfoundation/django-bootstrap:py3")
	assert.Contains(t, lines, "docker tag praekeltfoundation/django-bootstrap:py3 praekeltfoundation/django-bootstrap:latest")
	assert.Contains(t, lines, "docker push praekeltfoundation/django-bootstrap:latest")
	for _, l := range lines {
		assert.NotContains(t, l, "hunter2")
	}
}

func TestRun_NoDeployOffBranch(t *testing.T) {
	ciEnv(t, "master")
	t.Setenv("REGISTRY_USER", "bot")
	t.Setenv("REGISTRY_PASS", "hunter2")
	path := writeConfig(t, testConfig)

	rec := &executil.Recorder{}
	app := New()
	app.runner = rec

	_, err := execute(t, app, "run", "--config", path, "--dry-run")
	require.NoError(t, err)
	for _, l := range rec.Lines() {
		assert.False(t, strings.HasPrefix(l, "docker login"), l)
		assert.False(t, strings.HasPrefix(l, "docker push"), l)
	}
}

func TestRun_FailedLegExitsNonZero(t *testing.T) {
	ciEnv(t, "develop")
	path := writeConfig(t, testConfig)

	rec := &executil.Recorder{}
	rec.On("docker build --progress=plain -t praekeltfoundation/django-bootstrap:py2", "", &executil.ExitError{Cmd: "docker build", Code: 2})
	app := New()
	app.runner = rec

	out, err := execute(t, app, "build", "--config", path, "--dry-run")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code, "exit status of the failed docker build")
	assert.Contains(t, err.Error(), "variant py2")
	assert.Contains(t, out, "1 passed, 1 failed")
	assert.Contains(t, rec.Lines(), "docker build --progress=plain -t mysite:py3 -f example/py3.dockerfile example",
		"py3 must still build after py2 failed")
}

func TestInit(t *testing.T) {
	ciEnv(t, "develop")
	path := filepath.Join(t.TempDir(), ".bootci.yaml")

	out, err := execute(t, New(), "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	_, err = execute(t, New(), "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")
	_, err = execute(t, New(), "init", "--config", path, "--force")
	require.NoError(t, err)

	out, err = execute(t, New(), "plan", "--config", path)
	require.NoError(t, err)
	var doc planDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Legs, 2)
	assert.Len(t, doc.Legs[1].Smoke.Checks, 2)
	assert.True(t, doc.Legs[1].Deploy.Latest)
}
