package cli

import (
	_ "embed"
	"time"

	"github.com/tyemirov/stagehand/internal/gcloud"
)

//go:embed default_config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the built-in configuration document and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	content := make([]byte, len(embeddedDefaultConfiguration))
	copy(content, embeddedDefaultConfiguration)
	return content, configurationTypeConstant
}

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Run    RunConfiguration               `mapstructure:"run"`
	GCloud gcloud.ProviderConfiguration   `mapstructure:"gcloud"`
	Serve  ServeConfiguration             `mapstructure:"serve"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// RunConfiguration stores defaults for the run and plan commands.
type RunConfiguration struct {
	Plan                 string        `mapstructure:"plan"`
	Concurrency          int           `mapstructure:"concurrency"`
	Retries              int           `mapstructure:"retries"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
	VersionProvider      string        `mapstructure:"vcs"`
	CacheDirectory       string        `mapstructure:"cache_dir"`
	StateDirectory       string        `mapstructure:"state_dir"`
	StartedEvents        bool          `mapstructure:"started_events"`
}

// ServeConfiguration stores defaults for the serve command.
type ServeConfiguration struct {
	Address string `mapstructure:"address"`
}
