// Package config loads the zookeeper client configuration from an optional
// YAML file and ZK_ prefixed environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

const envPrefix = "ZK"

// Config is the configuration of the zkwatch command.
type Config struct {
	zkclient.Options `mapstructure:",squash"`

	LogLevel      string `mapstructure:"log_level"`
	StatsdAddress string `mapstructure:"statsd_address"`
}

func setDefaults(v *viper.Viper) {
	defaults := zkclient.DefaultOptions()
	v.SetDefault("connection_string", "")
	v.SetDefault("base_route_path", defaults.BaseRoutePath)
	v.SetDefault("session_span_timeout", defaults.SessionSpanTimeout)
	v.SetDefault("connection_span_timeout", defaults.ConnectionSpanTimeout)
	v.SetDefault("operating_span_timeout", defaults.OperatingSpanTimeout)
	v.SetDefault("healthy_check_times", defaults.HealthyCheckTimes)
	v.SetDefault("enable_ephemeral_node_restore", defaults.EnableEphemeralNodeRestore)
	v.SetDefault("read_only", false)
	v.SetDefault("session_id", 0)
	v.SetDefault("session_passwd", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("statsd_address", "")
}

// Load reads file, if not empty, then the environment, and validates the result.
// Environment variables win over the file, e.g. ZK_CONNECTION_STRING.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
