// Package ensemble keeps one zkclient.Client per configured ensemble, tracks
// their health, evicts ensembles which keep failing and hands out clients.
package ensemble

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/golang/groupcache/singleflight"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thinker0/go.zkensemble/pkg/metric"
	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

// ErrNoAvailableClient is returned when no ensemble has a registered client.
var ErrNoAvailableClient = errors.New("ensemble: no available client")

// Option customizes a Factory.
type Option func(f *Factory)

// WithClientOptions are passed to every zkclient.New call.
func WithClientOptions(options ...zkclient.Option) Option {
	return func(f *Factory) {
		f.clientOptions = append(f.clientOptions, options...)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// Factory owns the clients of every ensemble in Options.ConnectionString.
// An evicted ensemble is not added back until CreateAll is called again.
type Factory struct {
	opts          zkclient.Options
	clientOptions []zkclient.Option
	logger        zerolog.Logger
	intn          func(n int) int

	construct singleflight.Group

	lock     sync.RWMutex
	clients  map[string]*zkclient.Client
	health   map[string]*HealthRecord
	checking map[string]bool
	closed   bool
}

func NewFactory(opts zkclient.Options, options ...Option) *Factory {
	f := &Factory{
		opts:     opts,
		logger:   log.Logger.With().Str("component", "ensemble").Logger(),
		intn:     rand.IntN,
		clients:  make(map[string]*zkclient.Client),
		health:   make(map[string]*HealthRecord),
		checking: make(map[string]bool),
	}
	for _, o := range options {
		o(f)
	}
	return f
}

// CreateAll connects to every configured ensemble which has no client yet.
// Ensembles are dialed concurrently. A failed connection is recorded in the
// health record of the ensemble and is not returned.
func (f *Factory) CreateAll() {
	var g errgroup.Group
	for _, connString := range f.opts.ConnectionStrings() {
		g.Go(func() error {
			f.create(connString)
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Factory) create(connString string) {
	if _, ok := f.client(connString); ok {
		return
	}

	_, err := f.construct.Do(connString, func() (interface{}, error) {
		if c, ok := f.client(connString); ok {
			return c, nil
		}
		client, err := zkclient.New(f.opts, connString, f.clientOptions...)
		if err != nil {
			return nil, err
		}
		if err := f.register(connString, client); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	})
	if err != nil {
		f.logger.Error().Err(err).Str("ensemble", connString).Msg("unable to create zookeeper client")
		metric.Incr(metric.ClientCreateFailure, metric.BuildTags(metric.TagEnsemble, connString))

		f.lock.Lock()
		record := f.recordLocked(connString)
		record.IsHealthy = false
		record.ConsecutiveFailures = 1
		record.FailureCategory = CategoryConnected
		record.FailureReason = err.Error()
		f.lock.Unlock()
		f.reportHealth(connString, false)
	}
}

func (f *Factory) register(connString string, client *zkclient.Client) error {
	f.lock.Lock()
	if f.closed {
		f.lock.Unlock()
		return fmt.Errorf("factory closed")
	}
	f.clients[connString] = client
	f.recordLocked(connString).markHealthy()
	f.lock.Unlock()

	client.SubscribeConnectionState(func(state zkclient.ConnectionState) {
		f.onStateChange(connString, client, state)
	})
	f.reportHealth(connString, true)
	f.logger.Info().Str("ensemble", connString).Msg("registered zookeeper client")
	return nil
}

func (f *Factory) client(connString string) (*zkclient.Client, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	c, ok := f.clients[connString]
	return c, ok
}

// recordLocked returns the health record of connString, creating it on first use.
func (f *Factory) recordLocked(connString string) *HealthRecord {
	r, ok := f.health[connString]
	if !ok {
		r = &HealthRecord{}
		f.health[connString] = r
	}
	return r
}

// onStateChange runs on the state goroutine of the client, so waiting for the
// session to come back is left to another goroutine.
func (f *Factory) onStateChange(connString string, client *zkclient.Client, state zkclient.ConnectionState) {
	switch state {
	case zkclient.StateDisconnected, zkclient.StateExpired:
		f.checkRecovery(connString, client)
	case zkclient.StateAuthFailed:
		f.lock.Lock()
		record := f.recordLocked(connString)
		record.IsHealthy = false
		record.FailureCategory = CategoryAuthFailed
		record.FailureReason = "authentication failed"
		f.lock.Unlock()
		f.reportHealth(connString, false)
		f.logger.Error().Str("ensemble", connString).Msg("zookeeper authentication failed")
	case zkclient.StateSyncConnected, zkclient.StateReadOnlyConnected:
		f.lock.Lock()
		f.recordLocked(connString).markHealthy()
		f.lock.Unlock()
		f.reportHealth(connString, true)
	}
}

// checkRecovery waits up to the connection span timeout for the session to
// be connected again. At most one wait per ensemble is pending.
func (f *Factory) checkRecovery(connString string, client *zkclient.Client) {
	f.lock.Lock()
	if f.checking[connString] {
		f.lock.Unlock()
		return
	}
	f.checking[connString] = true
	f.lock.Unlock()

	go func() {
		recovered := client.WaitForState(zkclient.StateSyncConnected, f.opts.ConnectionSpanTimeout)

		f.lock.Lock()
		delete(f.checking, connString)
		if client.IsClosed() {
			f.lock.Unlock()
			return
		}
		record := f.recordLocked(connString)
		if recovered {
			record.markHealthy()
			f.lock.Unlock()
			f.reportHealth(connString, true)
			return
		}

		record.markFailed(CategoryDisconnected, fmt.Sprintf("not connected again within %s", f.opts.ConnectionSpanTimeout))
		failures := record.ConsecutiveFailures
		evict := failures >= f.opts.HealthyCheckTimes && f.clients[connString] == client
		if evict {
			delete(f.clients, connString)
		}
		f.lock.Unlock()

		f.reportHealth(connString, false)
		f.logger.Warn().
			Str("ensemble", connString).
			Int("consecutive_failures", failures).
			Msg("zookeeper session did not recover")
		if evict {
			metric.Incr(metric.ClientEvicted, metric.BuildTags(metric.TagEnsemble, connString))
			f.logger.Error().Str("ensemble", connString).Msg("evicted zookeeper client")
			client.Close()
		}
	}()
}

func (f *Factory) reportHealth(connString string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	metric.Gauge(metric.ClientHealthy, value, metric.BuildTags(metric.TagEnsemble, connString))
}

// clientsLocked returns the registered clients ordered by connection string.
func (f *Factory) clientsLocked() []*zkclient.Client {
	keys := make([]string, 0, len(f.clients))
	for k := range f.clients {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]*zkclient.Client, 0, len(keys))
	for _, k := range keys {
		result = append(result, f.clients[k])
	}
	return result
}

// GetClient returns a registered client picked uniformly at random.
// Health is not considered, an unhealthy client retries on its own.
func (f *Factory) GetClient() (*zkclient.Client, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	clients := f.clientsLocked()
	switch len(clients) {
	case 0:
		return nil, ErrNoAvailableClient
	case 1:
		return clients[0], nil
	}
	return clients[f.intn(len(clients))], nil
}

// GetAllClients returns every registered client ordered by connection string.
func (f *Factory) GetAllClients() ([]*zkclient.Client, error) {
	f.lock.RLock()
	defer f.lock.RUnlock()

	clients := f.clientsLocked()
	if len(clients) == 0 {
		return nil, ErrNoAvailableClient
	}
	return clients, nil
}

// GetHealth returns the health record of the ensemble of client.
func (f *Factory) GetHealth(client *zkclient.Client) HealthRecord {
	return f.Health(client.ConnectionString())
}

// Health returns the health record of connString, the zero record if the
// ensemble was never observed.
func (f *Factory) Health(connString string) HealthRecord {
	f.lock.RLock()
	defer f.lock.RUnlock()
	if r, ok := f.health[connString]; ok {
		return *r
	}
	return HealthRecord{}
}

// HealthRecords returns a copy of every record, evicted ensembles included.
func (f *Factory) HealthRecords() map[string]HealthRecord {
	f.lock.RLock()
	defer f.lock.RUnlock()
	result := make(map[string]HealthRecord, len(f.health))
	for k, r := range f.health {
		result[k] = *r
	}
	return result
}

// Close closes every registered client. Clients created afterwards are
// closed right away.
func (f *Factory) Close() {
	f.lock.Lock()
	f.closed = true
	clients := f.clientsLocked()
	f.clients = make(map[string]*zkclient.Client)
	f.lock.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
