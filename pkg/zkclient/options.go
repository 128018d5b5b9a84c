package zkclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults used by DefaultOptions.
const (
	DefaultBaseRoutePath         = "/"
	DefaultSessionSpanTimeout    = 20 * time.Second
	DefaultConnectionSpanTimeout = 20 * time.Second
	DefaultOperatingSpanTimeout  = 60 * time.Second
	DefaultHealthyCheckTimes     = 3
)

// Options configures session clients and the ensemble factory.
type Options struct {
	// ConnectionString is a semicolon separated list of ensembles. Each entry
	// is a comma separated list of host:port members of one ensemble.
	ConnectionString string `mapstructure:"connection_string"`
	// BaseRoutePath is prepended to every path passed to a client.
	BaseRoutePath string `mapstructure:"base_route_path"`

	SessionSpanTimeout    time.Duration `mapstructure:"session_span_timeout"`
	ConnectionSpanTimeout time.Duration `mapstructure:"connection_span_timeout"`
	OperatingSpanTimeout  time.Duration `mapstructure:"operating_span_timeout"`

	// HealthyCheckTimes is the number of consecutive failed health checks
	// after which the factory evicts a client.
	HealthyCheckTimes int `mapstructure:"healthy_check_times"`

	EnableEphemeralNodeRestore bool `mapstructure:"enable_ephemeral_node_restore"`
	ReadOnly                   bool `mapstructure:"read_only"`

	SessionID     int64  `mapstructure:"session_id"`
	SessionPasswd string `mapstructure:"session_passwd"`
}

// DefaultOptions returns options with every timeout set.
func DefaultOptions() Options {
	return Options{
		BaseRoutePath:              DefaultBaseRoutePath,
		SessionSpanTimeout:         DefaultSessionSpanTimeout,
		ConnectionSpanTimeout:      DefaultConnectionSpanTimeout,
		OperatingSpanTimeout:       DefaultOperatingSpanTimeout,
		HealthyCheckTimes:          DefaultHealthyCheckTimes,
		EnableEphemeralNodeRestore: true,
	}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if len(o.ConnectionStrings()) == 0 {
		return fmt.Errorf("connection string is empty")
	}
	if o.SessionSpanTimeout <= 0 {
		return fmt.Errorf("session span timeout must be positive, got %s", o.SessionSpanTimeout)
	}
	if o.ConnectionSpanTimeout <= 0 {
		return fmt.Errorf("connection span timeout must be positive, got %s", o.ConnectionSpanTimeout)
	}
	if o.OperatingSpanTimeout <= 0 {
		return fmt.Errorf("operating span timeout must be positive, got %s", o.OperatingSpanTimeout)
	}
	if o.HealthyCheckTimes <= 0 {
		return fmt.Errorf("healthy check times must be positive, got %d", o.HealthyCheckTimes)
	}
	return nil
}

// ConnectionStrings returns the distinct non-empty entries of ConnectionString
// in their configured order.
func (o Options) ConnectionStrings() []string {
	seen := make(map[string]bool)
	var result []string
	for _, s := range strings.Split(o.ConnectionString, ";") {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}

// servers splits one ensemble connection string into member addresses.
func servers(connString string) []string {
	var result []string
	for _, s := range strings.Split(connString, ",") {
		if s = strings.TrimSpace(s); s != "" {
			result = append(result, s)
		}
	}
	return result
}

// Option customizes a Client.
type Option func(c *Client)

// WithDialer replaces the zookeeper driver, used by tests.
func WithDialer(dial Dialer) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

// WithClock replaces the clock used for retry deadlines.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithLogger sets the logger, the global zerolog logger is used by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func defaultLogger() zerolog.Logger {
	return log.Logger.With().Str("component", "zkclient").Logger()
}
