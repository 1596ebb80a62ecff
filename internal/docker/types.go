// internal/docker/types.go
package docker

import (
	"errors"
	"time"
)

// BuildOptions is one image build.
type BuildOptions struct {
	Dockerfile  string      // default: "Dockerfile"
	ContextPath string      // default: "."
	BuildArgs   [][2]string // KEY,VALUE (deterministic)
	Labels      [][2]string // optional
	CacheFrom   []string    // images offered as layer cache

	FullRefs []string // e.g. ["praekeltfoundation/django-bootstrap:py3"]

	Target  string // optional multi-stage target
	Pull    bool   // docker build --pull
	NoCache bool   // docker build --no-cache
}

// RunOptions starts a detached container.
type RunOptions struct {
	Name    string
	Image   string
	Ports   []string // "host:container"
	Network string   // optional user-defined network
	Env     [][2]string
}

// DeployOptions publishes Source under every ref in Refs.
type DeployOptions struct {
	Registry string // empty: engine default
	Username string
	Password string
	Source   string   // locally built image
	Refs     []string // fully-qualified repo:tag
	Logout   bool
}

// DefaultStopTimeout is passed to "stop -t".
const DefaultStopTimeout = 5 * time.Second

var (
	// ErrNetworkExists is returned when a leg's network name is already taken.
	ErrNetworkExists = errors.New("network already exists")
	// ErrMissingCredentials is returned by Deploy without a username/password.
	ErrMissingCredentials = errors.New("missing registry credentials")
)
