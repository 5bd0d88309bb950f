package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Config is the application configuration. Every field can be set from the
// optional YAML file or from EMORA_* environment variables; CLI flags take
// precedence over both.
type Config struct {
	// Environment selects the log format (development or production).
	Environment string `env:"EMORA_ENVIRONMENT" env-default:"development" yaml:"environment"`
	// LogLevel is a logrus level name.
	LogLevel string `env:"EMORA_LOG_LEVEL" env-default:"warn" yaml:"logLevel"`

	// Registry is the site database path. Empty means the embedded database.
	Registry string `env:"EMORA_REGISTRY" yaml:"registry"`
	// Icons is a directory of <site>.png files. Empty means the embedded icons.
	Icons string `env:"EMORA_ICONS" yaml:"icons"`

	Search struct {
		// Concurrency is the default number of probes in flight; 0 means one per CPU.
		Concurrency int `env:"EMORA_CONCURRENCY" env-default:"0" yaml:"concurrency"`
		// MaxConcurrency is the upper bound accepted for Concurrency.
		MaxConcurrency int `env:"EMORA_MAX_CONCURRENCY" env-default:"50" yaml:"maxConcurrency"`
		// RequestTimeout bounds one probe, connection through body read.
		RequestTimeout time.Duration `env:"EMORA_REQUEST_TIMEOUT" env-default:"8s" yaml:"requestTimeout"`
		// UserAgent is sent with every probe and cannot be overridden per site.
		UserAgent string `env:"EMORA_USER_AGENT" yaml:"userAgent"`
		// MaxBodyBytes caps the response body a message check reads; a longer
		// body fails the check.
		MaxBodyBytes int64 `env:"EMORA_MAX_BODY_BYTES" env-default:"2097152" yaml:"maxBodyBytes"`
		// RequestsPerSecond paces probe starts within one search; 0 disables pacing.
		RequestsPerSecond float64 `env:"EMORA_REQUESTS_PER_SECOND" env-default:"0" yaml:"requestsPerSecond"`
	} `yaml:"search"`

	Tor struct {
		Enabled  bool   `env:"EMORA_TOR" env-default:"false" yaml:"enabled"`
		ProxyURL string `env:"EMORA_TOR_PROXY_URL" env-default:"socks5://127.0.0.1:9050" yaml:"proxyURL"`
	} `yaml:"tor"`

	Metrics struct {
		// Addr enables the Prometheus endpoint when non-empty, e.g. ":9090".
		Addr string `env:"EMORA_METRICS_ADDR" yaml:"addr"`
		Path string `env:"EMORA_METRICS_PATH" env-default:"/metrics" yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads the YAML file at configPath and the environment. A missing file
// is not an error when the path was not set explicitly: the environment and
// defaults are used instead.
func Load(configPath string, explicit bool) (*Config, error) {
	var cfg Config

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil || explicit {
			if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
				return nil, errors.Wrap(err, "could not read config")
			}

			return &cfg, nil
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "could not read environment")
	}

	return &cfg, nil
}
