// Package metric reports client and ensemble health counters to statsd.
package metric

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

const (
	StateChange          = "zk_state_change"
	Reconnect            = "zk_reconnect"
	RetryTimeout         = "zk_retry_timeout"
	WatchDispatch        = "zk_watch_dispatch"
	WatchDispatchLatency = "zk_watch_dispatch_latency"
	EphemeralRestore     = "zk_ephemeral_restore"
	ClientEvicted        = "zk_client_evicted"
	ClientCreateFailure  = "zk_client_create_failure"
	ClientHealthy        = "zk_client_healthy"

	TagState    = "state"
	TagEnsemble = "ensemble"
	TagEvent    = "event"
	TagResult   = "result"
)

const samplingRate = 1.0

var (
	lock sync.RWMutex

	// it is safe to use one client from multiple goroutines simultaneously
	client statsd.ClientInterface = &statsd.NoOpClient{}
)

// Init starts sending metrics to the statsd agent at address.
// Until Init is called every metric is dropped.
func Init(address string, globalTags []string) error {
	c, err := statsd.New(address, statsd.WithTags(globalTags))
	if err != nil {
		return err
	}
	SetClient(c)
	log.Info().Msgf("metrics client initialized with address %s and global tags %v", address, globalTags)
	return nil
}

// SetClient replaces the statsd client.
func SetClient(c statsd.ClientInterface) {
	lock.Lock()
	defer lock.Unlock()
	client = c
}

func current() statsd.ClientInterface {
	lock.RLock()
	defer lock.RUnlock()
	return client
}

// Count increases metric counter by value.
func Count(name string, value int64, tags []string) {
	if err := current().Count(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("error occurred while doing statsd count")
	}
}

// Incr increases metric counter by 1.
func Incr(name string, tags []string) {
	Count(name, 1, tags)
}

// Gauge sets the current value of a metric.
func Gauge(name string, value float64, tags []string) {
	if err := current().Gauge(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("error occurred while doing statsd gauge")
	}
}

// Timing sends timing information.
func Timing(name string, value time.Duration, tags []string) {
	if err := current().Timing(name, value, tags, samplingRate); err != nil {
		log.Warn().Err(err).Msg("error occurred while doing statsd timing")
	}
}

// TagAsString formats a statsd tag.
func TagAsString(tag, value string) string {
	return tag + ":" + value
}

// BuildTags formats tag/value pairs, an odd trailing tag is dropped.
func BuildTags(pairs ...string) []string {
	tags := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tags = append(tags, TagAsString(pairs[i], pairs[i+1]))
	}
	return tags
}
