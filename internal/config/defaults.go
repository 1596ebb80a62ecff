package config

import "time"

// Defaults reproduce the original CI script.
const (
	DefaultEngine            = "docker"
	DefaultBaseDockerfile    = "${VARIANT}.dockerfile"
	DefaultBaseTag           = "${IMAGE}:${VARIANT}"
	DefaultExampleDockerfile = "example/${VARIANT}.dockerfile"
	DefaultExampleContext    = "example"
	DefaultExampleTag        = "mysite:${VARIANT}"
	DefaultContainerName     = "mysite-${VARIANT}"
	DefaultPort              = 8000
	DefaultURL               = "http://localhost:${PORT}/"
	DefaultGrace             = 5 * time.Second
	DefaultTimeout           = 60 * time.Second
	DefaultDeployBranch      = "develop"
	DefaultParallel          = 1
	DefaultLogLevel          = "info"

	// DefaultExpect is the body of Django's default landing page.
	DefaultExpect = "<h1>It worked!</h1>"
)

// DefaultConfig returns a Config with every scalar default set. Slice
// defaults are filled by applyDefaults after decoding so a config file
// replaces them instead of merging element-wise.
func DefaultConfig() *Config {
	return &Config{
		Engine: DefaultEngine,
		Base: ImageSpec{
			Dockerfile: DefaultBaseDockerfile,
			Context:    ".",
			Tag:        DefaultBaseTag,
		},
		Example: ImageSpec{
			Dockerfile: DefaultExampleDockerfile,
			Context:    DefaultExampleContext,
			Tag:        DefaultExampleTag,
		},
		Smoke: SmokeConfig{
			Mode:          SmokeHTTP,
			ContainerName: DefaultContainerName,
			Port:          DefaultPort,
			ContainerPort: DefaultPort,
			URL:           DefaultURL,
			Grace:         DefaultGrace,
			Timeout:       DefaultTimeout,
		},
		Deploy: DeployConfig{
			Branch: DefaultDeployBranch,
			Logout: true,
		},
		Parallel: DefaultParallel,
		LogLevel: DefaultLogLevel,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Smoke.Mode == SmokeHTTP && len(cfg.Smoke.Checks) == 0 {
		cfg.Smoke.Checks = []Check{{Path: "/", Contains: DefaultExpect}}
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = DefaultParallel
	}
}
