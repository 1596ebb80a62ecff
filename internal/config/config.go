package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// FileName is the pipeline definition looked up in the working directory.
const FileName = ".bootci.yaml"

// SmokeMode selects how the example image is validated.
type SmokeMode string

const (
	// SmokeHTTP issues GET requests and matches literal body content.
	SmokeHTTP SmokeMode = "http"
	// SmokeScript runs an external test runner against the image.
	SmokeScript SmokeMode = "script"
	// SmokeNone skips the smoke step.
	SmokeNone SmokeMode = "none"
)

// Config is the whole pipeline definition. It is immutable once Load returns.
type Config struct {
	// Engine is the container CLI: "docker" or "podman".
	Engine string `mapstructure:"engine" yaml:"engine"`

	// Image is the bootstrap image repository, e.g. "praekeltfoundation/django-bootstrap".
	Image string `mapstructure:"image" yaml:"image"`

	// Variants is the build matrix.
	Variants []Variant `mapstructure:"variants" yaml:"variants"`

	// Base is the bootstrap image built from the top-level dockerfile.
	Base ImageSpec `mapstructure:"base" yaml:"base"`

	// Example is the application image built on top of Base.
	Example ImageSpec `mapstructure:"example" yaml:"example"`

	Smoke  SmokeConfig  `mapstructure:"smoke" yaml:"smoke"`
	Deploy DeployConfig `mapstructure:"deploy" yaml:"deploy"`

	// Parallel is the number of matrix legs run at once.
	Parallel int `mapstructure:"parallel" yaml:"parallel"`

	DryRun   bool   `mapstructure:"dry_run" yaml:"dry_run"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Variant is one matrix entry.
type Variant struct {
	Name string `mapstructure:"name" yaml:"name"`

	// BuildArgs are extra KEY=VALUE build args for this variant's base image.
	BuildArgs []string `mapstructure:"build_args" yaml:"build_args,omitempty"`

	// Latest marks the variant that also publishes the "latest" tag.
	Latest bool `mapstructure:"latest" yaml:"latest,omitempty"`

	// Port overrides smoke.port for this variant.
	Port int `mapstructure:"port" yaml:"port,omitempty"`
}

// ImageSpec describes one image build. Dockerfile, Context, Tag, BuildArgs
// and CacheFrom are templates expanded per variant.
type ImageSpec struct {
	Dockerfile string   `mapstructure:"dockerfile" yaml:"dockerfile"`
	Context    string   `mapstructure:"context" yaml:"context"`
	Tag        string   `mapstructure:"tag" yaml:"tag"`
	BuildArgs  []string `mapstructure:"build_args" yaml:"build_args,omitempty"`
	Labels     []string `mapstructure:"labels" yaml:"labels,omitempty"`
	CacheFrom  []string `mapstructure:"cache_from" yaml:"cache_from,omitempty"`
	Target     string   `mapstructure:"target" yaml:"target,omitempty"`
	Pull       bool     `mapstructure:"pull" yaml:"pull,omitempty"`
	NoCache    bool     `mapstructure:"no_cache" yaml:"no_cache,omitempty"`
}

// SmokeConfig controls the post-build container check.
type SmokeConfig struct {
	Mode SmokeMode `mapstructure:"mode" yaml:"mode"`

	// ContainerName is a template; it must differ per variant when legs run in parallel.
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`

	// Port is the host port published to ContainerPort.
	Port          int `mapstructure:"port" yaml:"port"`
	ContainerPort int `mapstructure:"container_port" yaml:"container_port"`

	// URL is the base URL checks are resolved against.
	URL string `mapstructure:"url" yaml:"url"`

	// Grace is the minimum wait after start; Timeout bounds the readiness
	// poll that follows it.
	Grace   time.Duration `mapstructure:"grace" yaml:"grace"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Script is the test runner command line for SmokeScript, e.g.
	// "pytest example/test.py --django-bootstrap-image=$EXAMPLE_TAG".
	Script string `mapstructure:"script" yaml:"script,omitempty"`

	Checks []Check `mapstructure:"checks" yaml:"checks,omitempty"`

	// Network, when set, is a dedicated bridge network created for the leg.
	Network string `mapstructure:"network" yaml:"network,omitempty"`
}

// Check is one HTTP expectation.
type Check struct {
	Path string `mapstructure:"path" yaml:"path"`
	// Status is the exact status wanted; 0 means any 2xx.
	Status   int    `mapstructure:"status" yaml:"status,omitempty"`
	Contains string `mapstructure:"contains" yaml:"contains,omitempty"`
	// Headers are asserted on the response; an empty value means absent.
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	// RequestHeaders are sent with the request, e.g. Accept-Encoding.
	RequestHeaders map[string]string `mapstructure:"request_headers" yaml:"request_headers,omitempty"`
}

// DeployConfig controls registry publishing of the base image.
type DeployConfig struct {
	// Branch is the only branch that deploys.
	Branch string `mapstructure:"branch" yaml:"branch"`

	// Registry host; empty means the engine default (Docker Hub).
	Registry string `mapstructure:"registry" yaml:"registry,omitempty"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"-"`

	// Version, when set, adds "<version>-<variant>" tags.
	Version string `mapstructure:"version" yaml:"version,omitempty"`
	// Semver expands Version into major, major.minor and full tags.
	Semver bool `mapstructure:"semver" yaml:"semver,omitempty"`

	// TagLatest publishes "latest" from LatestVariant, or from the only
	// variant in the run when LatestVariant is empty.
	TagLatest     bool   `mapstructure:"tag_latest" yaml:"tag_latest,omitempty"`
	LatestVariant string `mapstructure:"latest_variant" yaml:"latest_variant,omitempty"`

	Logout bool `mapstructure:"logout" yaml:"logout"`
}

// LoadOptions selects where configuration is read from.
type LoadOptions struct {
	// Path is an explicit config file; it must exist when set.
	Path string
	// Dir is searched for FileName when Path is empty. Defaults to ".".
	Dir string
}

// Load reads defaults, then the optional config file, then environment
// overrides, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	path := opts.Path
	if path == "" {
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		if candidate := filepath.Join(dir, FileName); fileExists(candidate) {
			path = candidate
		}
	} else if !fileExists(path) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.Getenv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// VariantNames returns the matrix in declaration order.
func (c *Config) VariantNames() []string {
	names := make([]string, len(c.Variants))
	for i, v := range c.Variants {
		names[i] = v.Name
	}
	return names
}

func (c *Config) variant(name string) (Variant, bool) {
	for _, v := range c.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
