package docker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bootci/internal/config"
	"bootci/internal/executil"
)

var absent = &executil.ExitError{Cmd: "inspect", Code: 1, Err: errors.New("exit status 1")}

func newCLI(rec *executil.Recorder, dry bool) *CLI {
	return New("docker", rec, log.New(io.Discard), dry)
}

func TestBuildImage_Args(t *testing.T) {
	rec := &executil.Recorder{}
	rec.On("docker image inspect", "", absent)
	c := newCLI(rec, true)

	err := c.BuildImage(context.Background(), &BuildOptions{
		Dockerfile:  "py3.dockerfile",
		ContextPath: ".",
		FullRefs:    []string{"praekeltfoundation/django-bootstrap:py3", "praekeltfoundation/django-bootstrap:py3"},
		BuildArgs:   [][2]string{{"PYTHON", "3.6"}, {"NPM_TOKEN", "abc"}},
		Labels:      [][2]string{{"org.opencontainers.image.revision", "deadbeef"}},
		CacheFrom:   []string{"praekeltfoundation/django-bootstrap:py3"},
		Pull:        true,
		Target:      "runtime",
	})
	require.NoError(t, err)

	require.Len(t, rec.Cmds, 1, "dry-run skips the cache pull")
	assert.Equal(t, "docker build --progress=plain -t praekeltfoundation/django-bootstrap:py3 -f py3.dockerfile --pull --target runtime"+
		" --cache-from praekeltfoundation/django-bootstrap:py3"+
		" --label org.opencontainers.image.revision=deadbeef"+
		" --build-arg PYTHON=3.6 --build-arg NPM_TOKEN=abc .", rec.Lines()[0])
	assert.Equal(t, []string{"abc"}, rec.Cmds[0].Redact)
}

func TestBuildImage_ChecksFilesystem(t *testing.T) {
	dir := t.TempDir()
	c := newCLI(&executil.Recorder{}, false)

	err := c.BuildImage(context.Background(), &BuildOptions{
		Dockerfile:  filepath.Join(dir, "missing.dockerfile"),
		ContextPath: dir,
		FullRefs:    []string{"mysite:py3"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or not a file")

	df := filepath.Join(dir, "py3.dockerfile")
	require.NoError(t, os.WriteFile(df, []byte("FROM scratch\n"), 0o644))
	err = c.BuildImage(context.Background(), &BuildOptions{
		Dockerfile:  df,
		ContextPath: filepath.Join(dir, "nope"),
		FullRefs:    []string{"mysite:py3"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or not a directory")
}

func TestBuildImage_PullsMissingCacheImage(t *testing.T) {
	dir := t.TempDir()
	df := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(df, []byte("FROM scratch\n"), 0o644))

	rec := &executil.Recorder{}
	rec.On("docker image inspect", "", absent)
	c := newCLI(rec, false)

	err := c.BuildImage(context.Background(), &BuildOptions{
		Dockerfile:  df,
		ContextPath: dir,
		FullRefs:    []string{"mysite:py3"},
		CacheFrom:   []string{"mysite:cache"},
	})
	require.NoError(t, err)

	lines := rec.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "docker image inspect --format {{.Id}} mysite:cache", lines[0])
	assert.Equal(t, "docker pull mysite:cache", lines[1])
	assert.Contains(t, lines[2], "--cache-from mysite:cache")
}

func TestBuildImage_CacheImageFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	df := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(df, []byte("FROM scratch\n"), 0o644))

	rec := &executil.Recorder{}
	rec.On("docker image inspect", "", absent)
	rec.On("docker pull", "", errors.New("not found"))
	c := newCLI(rec, false)

	err := c.BuildImage(context.Background(), &BuildOptions{
		Dockerfile:  df,
		ContextPath: dir,
		FullRefs:    []string{"mysite:py3"},
		CacheFrom:   []string{"mysite:cache"},
	})
	require.NoError(t, err)
}

func TestBuildImage_RejectsBadRefs(t *testing.T) {
	c := newCLI(&executil.Recorder{}, true)
	for _, ref := range []string{"MySite:py3", "my site:py3", ":py3", "mysite:bad!tag"} {
		err := c.BuildImage(context.Background(), &BuildOptions{FullRefs: []string{ref}})
		assert.Error(t, err, ref)
	}
	assert.Error(t, c.BuildImage(context.Background(), nil))
	assert.Error(t, c.BuildImage(context.Background(), &BuildOptions{}))
}

func TestBuildImage_PodmanHasNoProgressFlag(t *testing.T) {
	rec := &executil.Recorder{}
	c := New("podman", rec, log.New(io.Discard), true)

	require.NoError(t, c.BuildImage(context.Background(), &BuildOptions{FullRefs: []string{"mysite:py3"}}))
	assert.Equal(t, "podman build -t mysite:py3 -f Dockerfile .", rec.Lines()[0])
}

func TestOptionsFromSpec(t *testing.T) {
	opts := OptionsFromSpec(config.ImageSpec{
		Dockerfile: "example/py3.dockerfile",
		Context:    "example",
		Tag:        "mysite:py3",
		BuildArgs:  []string{"A=1", "B=x=y", "=skip"},
		Labels:     []string{"team=web"},
		NoCache:    true,
	}, [][2]string{{"org.opencontainers.image.revision", "abc"}, {"org.opencontainers.image.version", ""}})

	assert.Equal(t, "example/py3.dockerfile", opts.Dockerfile)
	assert.Equal(t, "example", opts.ContextPath)
	assert.Equal(t, []string{"mysite:py3"}, opts.FullRefs)
	assert.Equal(t, [][2]string{{"A", "1"}, {"B", "x=y"}}, opts.BuildArgs)
	assert.Equal(t, [][2]string{{"org.opencontainers.image.revision", "abc"}, {"team", "web"}}, opts.Labels)
	assert.True(t, opts.NoCache)
}

func TestRunContainer(t *testing.T) {
	rec := &executil.Recorder{}
	rec.On("docker run", "c0ffee", nil)
	c := newCLI(rec, false)

	id, err := c.RunContainer(context.Background(), RunOptions{
		Name:    "mysite-py3",
		Image:   "mysite:py3",
		Ports:   []string{"8000:8000"},
		Network: "mysite-py3-net",
	})
	require.NoError(t, err)
	assert.Equal(t, "c0ffee", id)
	assert.Equal(t,
		"docker run -d --name mysite-py3 --network mysite-py3-net --network-alias mysite-py3 -p 8000:8000 mysite:py3",
		rec.Lines()[0])
}

func TestContainerProbes(t *testing.T) {
	rec := &executil.Recorder{}
	rec.On("docker container inspect --format {{.State.Running}} up", "true", nil)
	rec.On("docker container inspect --format {{.State.Running}} exited", "false", nil)
	rec.On("docker container inspect --format {{.State.Running}} gone", "", absent)
	rec.On("docker container inspect --format {{.Id}} gone", "", absent)
	rec.On("docker container inspect --format {{.State.Running}} broken", "", errors.New("daemon down"))
	c := newCLI(rec, false)
	ctx := context.Background()

	running, err := c.ContainerRunning(ctx, "up")
	require.NoError(t, err)
	assert.True(t, running)

	running, err = c.ContainerRunning(ctx, "exited")
	require.NoError(t, err)
	assert.False(t, running)

	running, err = c.ContainerRunning(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, running)

	exists, err := c.ContainerExists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = c.ContainerRunning(ctx, "broken")
	assert.Error(t, err)
}

func TestStopAndRemove(t *testing.T) {
	rec := &executil.Recorder{}
	c := newCLI(rec, false)

	require.NoError(t, c.StopContainer(context.Background(), "mysite-py3", DefaultStopTimeout))
	require.NoError(t, c.RemoveContainer(context.Background(), "mysite-py3", true))
	assert.Equal(t, []string{"docker stop -t 5 mysite-py3", "docker rm -f mysite-py3"}, rec.Lines())
}

func TestCreateNetwork(t *testing.T) {
	rec := &executil.Recorder{}
	c := newCLI(rec, false)

	require.NoError(t, c.CreateNetwork(context.Background(), "mysite-net"))
	assert.Equal(t, []string{
		"docker network ls --quiet --filter name=^mysite-net$",
		"docker network create --driver bridge mysite-net",
	}, rec.Lines())

	rec = &executil.Recorder{}
	rec.On("docker network ls", "f00", nil)
	c = newCLI(rec, false)
	err := c.CreateNetwork(context.Background(), "mysite-net")
	require.ErrorIs(t, err, ErrNetworkExists)
	assert.Contains(t, err.Error(), "mysite-net (remove it with `docker network rm mysite-net`)")
	assert.Len(t, rec.Cmds, 1)
}

func TestDeploy(t *testing.T) {
	rec := &executil.Recorder{}
	c := newCLI(rec, false)

	err := c.Deploy(context.Background(), DeployOptions{
		Username: "bot",
		Password: "hunter2",
		Source:   "praekeltfoundation/django-bootstrap:py3",
		Refs: []string{
			"praekeltfoundation/django-bootstrap:py3",
			"praekeltfoundation/django-bootstrap:latest",
		},
		Logout: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"docker login --username bot --password-stdin",
		"docker push praekeltfoundation/django-bootstrap:py3",
		"docker tag praekeltfoundation/django-bootstrap:py3 praekeltfoundation/django-bootstrap:latest",
		"docker push praekeltfoundation/django-bootstrap:latest",
		"docker logout",
	}, rec.Lines())

	login := rec.Cmds[0]
	stdin, err := io.ReadAll(login.Stdin)
	require.NoError(t, err)
	assert.Equal(t, "hunter2\n", string(stdin))
	assert.NotContains(t, login.String(), "hunter2")
}

func TestDeploy_Registry(t *testing.T) {
	rec := &executil.Recorder{}
	c := newCLI(rec, false)

	err := c.Deploy(context.Background(), DeployOptions{
		Registry: "ghcr.io",
		Username: "bot",
		Password: "pw",
		Source:   "local/bootstrap:py3",
		Refs:     []string{"ghcr.io/org/bootstrap:py3"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"docker login --username bot --password-stdin ghcr.io",
		"docker tag local/bootstrap:py3 ghcr.io/org/bootstrap:py3",
		"docker push ghcr.io/org/bootstrap:py3",
	}, rec.Lines())
}

func TestDeploy_MissingCredentialsMakesNoCalls(t *testing.T) {
	rec := &executil.Recorder{}
	c := newCLI(rec, false)

	err := c.Deploy(context.Background(), DeployOptions{
		Username: "bot",
		Source:   "img:py3",
		Refs:     []string{"img:py3"},
	})
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Empty(t, rec.Cmds)
}

func TestDeploy_PushFailureStopsWithoutRollback(t *testing.T) {
	rec := &executil.Recorder{}
	rec.On("docker push img:latest", "", errors.New("denied"))
	c := newCLI(rec, false)

	err := c.Deploy(context.Background(), DeployOptions{
		Username: "bot",
		Password: "pw",
		Source:   "img:py3",
		Refs:     []string{"img:py3", "img:latest", "img:1.0-py3"},
		Logout:   true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push img:latest")

	assert.Equal(t, []string{
		"docker login --username bot --password-stdin",
		"docker push img:py3",
		"docker tag img:py3 img:latest",
		"docker push img:latest",
		"docker logout",
	}, rec.Lines())
}

func TestDeploy_LoginFailure(t *testing.T) {
	rec := &executil.Recorder{}
	rec.On("docker login", "", errors.New("unauthorized"))
	c := newCLI(rec, false)

	err := c.Deploy(context.Background(), DeployOptions{
		Username: "bot", Password: "pw", Source: "img:py3", Refs: []string{"img:py3"}, Logout: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker login failed")
	assert.Len(t, rec.Cmds, 1, "no push or logout after a failed login")
}
