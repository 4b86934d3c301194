// Package cli implements the icontrol command-line tool.
package cli

import (
	"log/slog"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	icontrol "github.com/lexfrei/go-icontrol"
	"github.com/lexfrei/go-icontrol/observability"
)

// EnvPrefix is the prefix of environment variables read by the CLI,
// e.g. ICONTROL_HOST or ICONTROL_MAX_ATTEMPTS.
const EnvPrefix = "ICONTROL_"

// Config is the resolved CLI configuration.
type Config struct {
	Host             string        `koanf:"host"`
	Username         string        `koanf:"username"`
	Password         string        `koanf:"password"`
	Insecure         bool          `koanf:"insecure"`
	Timeout          time.Duration `koanf:"timeout"`
	PostRequestDelay time.Duration `koanf:"post_request_delay"`
	MaxAttempts      int           `koanf:"max_attempts"`
	NotReadyWait     time.Duration `koanf:"not_ready_wait"`
	MaxRetryWait     time.Duration `koanf:"max_retry_wait"`
	RateLimit        int           `koanf:"rate_limit"`
	Verbose          bool          `koanf:"verbose"`
}

// LoadConfig resolves configuration with priority (lowest to highest):
// 1. Built-in defaults
// 2. YAML file at path (skipped when path is empty)
// 3. ICONTROL_* environment variables
// 4. Flags explicitly set on the command line
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load environment variables")
	}

	if flags != nil {
		if err := k.Load(confmap.Provider(changedFlags(flags), "."), nil); err != nil {
			return nil, errors.Wrap(err, "failed to load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"insecure":           false,
		"timeout":            icontrol.DefaultTimeout.String(),
		"post_request_delay": "0s",
		"max_attempts":       icontrol.DefaultMaxAttempts,
		"not_ready_wait":     icontrol.DefaultNotReadyWait.String(),
		"max_retry_wait":     icontrol.DefaultMaxRetryWait.String(),
		"rate_limit":         0,
		"verbose":            false,
	}
}

// changedFlags maps flags set by the user to config keys: --max-attempts becomes max_attempts.
func changedFlags(flags *pflag.FlagSet) map[string]any {
	values := make(map[string]any)
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == configFlag {
			return
		}
		values[strings.ReplaceAll(f.Name, "-", "_")] = f.Value.String()
	})
	return values
}

// ClientConfig converts the CLI configuration into a client configuration.
func (c *Config) ClientConfig(logger *slog.Logger, metrics observability.MetricsRecorder) *icontrol.ClientConfig {
	return &icontrol.ClientConfig{
		Host:               c.Host,
		Username:           c.Username,
		Password:           c.Password,
		InsecureSkipVerify: c.Insecure,
		Timeout:            c.Timeout,
		PostRequestDelay:   c.PostRequestDelay,
		MaxAttempts:        c.MaxAttempts,
		NotReadyWait:       c.NotReadyWait,
		MaxRetryWait:       c.MaxRetryWait,
		RateLimitPerMinute: c.RateLimit,
		Logger:             observability.NewSlogLogger(logger),
		Metrics:            metrics,
	}
}

// LogLevel returns the slog level implied by Verbose.
func (c *Config) LogLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
