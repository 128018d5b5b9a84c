// Package zkclient keeps a live session to a zookeeper ensemble, re-arms one-shot
// watches for registered handlers and restores ephemeral nodes after the
// session was replaced.
package zkclient

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/thinker0/go.zkensemble/pkg/metric"
)

// A Client owns one session to one ensemble. Every path it touches gets a
// node entry which lives as long as the client.
//
// Events of the session are handled by two goroutines: one for connection
// state changes and one for path events, so a path handler waiting for the
// reconnection never blocks the state change it waits for.
type Client struct {
	opts       Options
	connString string
	servers    []string

	dial   Dialer
	clock  clockwork.Clock
	logger zerolog.Logger

	sessionLock sync.RWMutex
	session     Session
	generation  *atomic.Uint64
	reconnectMu *semaphore.Weighted

	stateLock    sync.Mutex
	state        ConnectionState
	stateChanged chan struct{}

	connectedOnce *atomic.Bool
	closed        *atomic.Bool
	done          chan struct{}

	nodes         *nodeMap
	stateHandlers handlerList[StateChangeHandler]
	lastID        *atomic.Uint64

	stateEvents *eventQueue
	pathEvents  *eventQueue
}

// New connects to the ensemble described by connString (comma separated
// host:port list) and blocks until the session is established or the
// connection span timeout elapses.
func New(opts Options, connString string, options ...Option) (*Client, error) {
	if opts.BaseRoutePath == "" {
		opts.BaseRoutePath = DefaultBaseRoutePath
	}
	members := servers(connString)
	if len(members) == 0 {
		return nil, fmt.Errorf("no servers in connection string %q", connString)
	}

	c := &Client{
		opts:          opts,
		connString:    connString,
		servers:       members,
		dial:          DialZookeeper,
		clock:         clockwork.NewRealClock(),
		logger:        defaultLogger(),
		generation:    atomic.NewUint64(0),
		reconnectMu:   semaphore.NewWeighted(1),
		stateChanged:  make(chan struct{}),
		connectedOnce: atomic.NewBool(false),
		closed:        atomic.NewBool(false),
		done:          make(chan struct{}),
		lastID:        atomic.NewUint64(0),
		stateEvents:   newEventQueue(),
		pathEvents:    newEventQueue(),
	}
	for _, o := range options {
		o(c)
	}
	c.logger = c.logger.With().Str("ensemble", connString).Logger()
	c.nodes = newNodeMap(func(path string) *nodeEntry {
		return newNodeEntry(c, path)
	})

	go c.stateLoop()
	go c.pathLoop()

	if err := c.connect(); err != nil {
		c.Close()
		return nil, fmt.Errorf("unable to connect to %q: %w", connString, err)
	}

	if !c.waitFor(c.usable, opts.ConnectionSpanTimeout) {
		state := c.State()
		c.Close()
		return nil, fmt.Errorf("unable to connect to %q within %s, state %s", connString, opts.ConnectionSpanTimeout, state)
	}

	c.logger.Info().Int64("session_id", c.SessionID()).Msg("connected to zookeeper")
	return c, nil
}

// ConnectionString returns the ensemble this client connects to.
func (c *Client) ConnectionString() string {
	return c.connString
}

// Options returns the options the client was created with.
func (c *Client) Options() Options {
	return c.opts
}

// SessionID returns the id of the current session, 0 if there is none.
func (c *Client) SessionID() int64 {
	c.sessionLock.RLock()
	defer c.sessionLock.RUnlock()
	if c.session == nil {
		return 0
	}
	return c.session.SessionID()
}

// State returns the last observed connection state.
func (c *Client) State() ConnectionState {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.state
}

// WaitForState blocks until the connection state equals target.
// It returns false if timeout elapsed first or the client was closed.
// Every waiter is woken on every transition, so concurrent waiters on
// different states do not steal each other's notifications.
func (c *Client) WaitForState(target ConnectionState, timeout time.Duration) bool {
	return c.waitFor(func(s ConnectionState) bool { return s == target }, timeout)
}

func (c *Client) waitFor(match func(ConnectionState) bool, timeout time.Duration) bool {
	timer := c.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.stateLock.Lock()
		state, changed := c.state, c.stateChanged
		c.stateLock.Unlock()

		if match(state) {
			return true
		}

		select {
		case <-changed:
		case <-timer.Chan():
			return false
		case <-c.done:
			return false
		}
	}
}

// usable returns true if requests can be sent in the given state.
func (c *Client) usable(state ConnectionState) bool {
	return state == StateSyncConnected || (c.opts.ReadOnly && state == StateReadOnlyConnected)
}

func (c *Client) setState(state ConnectionState) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	c.state = state
	// wake every waiter
	close(c.stateChanged)
	c.stateChanged = make(chan struct{})
}

// Close closes the session. It is safe to call Close more than once.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)

	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}
	c.logger.Info().Msg("zookeeper client closed")
}

// IsClosed returns true once Close was called.
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

func (c *Client) dialConfig() DialConfig {
	var passwd []byte
	if c.opts.SessionPasswd != "" {
		passwd = []byte(c.opts.SessionPasswd)
	}
	return DialConfig{
		SessionTimeout: c.opts.SessionSpanTimeout,
		SessionID:      c.opts.SessionID,
		SessionPasswd:  passwd,
		ReadOnly:       c.opts.ReadOnly,
		Logger:         c.logger,
	}
}

// connect replaces the session handle with a freshly dialed one.
func (c *Client) connect() error {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	if c.closed.Load() {
		return ErrClientClosed
	}
	// events of the old handle are stale from here on
	gen := c.generation.Inc()
	if c.session != nil {
		c.session.Close()
		c.session = nil
	}

	session, err := c.dial(c.servers, c.dialConfig(), c.watcher(gen))
	if err != nil {
		return err
	}
	c.session = session
	return nil
}

func (c *Client) currentSession() (Session, error) {
	c.sessionLock.RLock()
	defer c.sessionLock.RUnlock()
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.session == nil {
		return nil, ErrConnectionClosed
	}
	return c.session, nil
}

// watcher returns the callback of one session generation. Events of a
// replaced session are dropped.
func (c *Client) watcher(gen uint64) Watcher {
	return func(event Event) {
		if c.closed.Load() || c.generation.Load() != gen {
			return
		}
		if event.Path == "" {
			c.stateEvents.push(event)
		} else {
			c.pathEvents.push(event)
		}
	}
}

func (c *Client) stateLoop() {
	for {
		event, ok := c.stateEvents.pop(c.done)
		if !ok {
			return
		}
		c.handleStateEvent(event)
	}
}

func (c *Client) pathLoop() {
	for {
		event, ok := c.pathEvents.pop(c.done)
		if !ok {
			return
		}
		c.handlePathEvent(event)
	}
}

func (c *Client) handleStateEvent(event Event) {
	state := event.State
	c.logger.Info().Str("state", state.String()).Msg("zookeeper connection state changed")
	metric.Incr(metric.StateChange, metric.BuildTags(metric.TagState, state.String(), metric.TagEnsemble, c.connString))

	c.setState(state)

	switch state {
	case StateExpired:
		c.reconnect()
	case StateSyncConnected:
		if c.connectedOnce.Swap(true) {
			c.reconnected()
		}
	}

	for _, handler := range c.stateHandlers.list() {
		c.invokeState(handler, state)
	}
}

// reconnect opens a new session after the old one expired. Only one
// reconnect runs at a time, a caller that cannot get the turn within the
// connection span timeout gives up, the next expiry retries.
func (c *Client) reconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ConnectionSpanTimeout)
	defer cancel()
	if err := c.reconnectMu.Acquire(ctx, 1); err != nil {
		c.logger.Warn().Err(err).Msg("another reconnect is in progress, giving up")
		return
	}
	defer c.reconnectMu.Release(1)

	b := newReconnectBackoff(c.opts.ConnectionSpanTimeout)
	err := backoff.Retry(func() error {
		if err := c.connect(); err != nil {
			if c.closed.Load() {
				return backoff.Permanent(err)
			}
			c.logger.Warn().Err(err).Msg("unable to open a new zookeeper session")
			return err
		}
		return nil
	}, b)
	if err != nil {
		metric.Incr(metric.Reconnect, metric.BuildTags(metric.TagResult, "failed", metric.TagEnsemble, c.connString))
		c.logger.Error().Err(err).Msg("unable to reconnect after session expired")
		return
	}
	metric.Incr(metric.Reconnect, metric.BuildTags(metric.TagResult, "success", metric.TagEnsemble, c.connString))
	c.logger.Info().Msg("opened a new zookeeper session after expiry")
}

func newReconnectBackoff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0.2
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return b
}

// reconnected tells every tracked path that the session is back, which
// restores ephemeral nodes and refreshes handlers.
func (c *Client) reconnected() {
	for _, n := range c.nodes.all() {
		c.pathEvents.push(Event{Type: eventReconnected, State: StateSyncConnected, Path: n.path})
	}
}

func (c *Client) handlePathEvent(event Event) {
	n, ok := c.nodes.get(event.Path)
	if !ok {
		c.logger.Debug().Str("path", event.Path).Msg("event for untracked path ignored")
		return
	}
	n.handleEvent(event)
}

func (c *Client) invokeState(handler StateChangeHandler, state ConnectionState) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Msgf("state handler panicked: %v, stacktrace - %s", r, debug.Stack())
		}
	}()
	handler(state)
}

// SubscribeConnectionState registers a handler called on every connection
// state change, in registration order.
func (c *Client) SubscribeConnectionState(handler StateChangeHandler) *Subscription {
	sub := &Subscription{id: c.lastID.Inc(), kind: subscriptionState}
	c.stateHandlers.add(sub.id, handler)
	return sub
}

// SubscribeDataChange registers a handler for creation, deletion and data
// changes of path and arms the first watch.
func (c *Client) SubscribeDataChange(path string, handler DataChangeHandler) (*Subscription, error) {
	full := c.fullPath(path)
	n := c.nodes.getOrInit(full)
	sub := &Subscription{id: c.lastID.Inc(), kind: subscriptionData, path: full}
	n.dataHandlers.add(sub.id, handler)

	if _, err := c.existsAt(full, true); err != nil {
		n.dataHandlers.remove(sub.id)
		return nil, fmt.Errorf("unable to watch %s: %w", full, err)
	}
	return sub, nil
}

// SubscribeChildrenChange registers a handler for children changes of path
// and arms the first watch. The path does not have to exist yet.
func (c *Client) SubscribeChildrenChange(path string, handler ChildrenChangeHandler) (*Subscription, error) {
	full := c.fullPath(path)
	n := c.nodes.getOrInit(full)
	sub := &Subscription{id: c.lastID.Inc(), kind: subscriptionChildren, path: full}
	n.childrenHandlers.add(sub.id, handler)

	if _, err := c.existsAt(full, true); err != nil {
		n.childrenHandlers.remove(sub.id)
		return nil, fmt.Errorf("unable to watch %s: %w", full, err)
	}
	if _, err := c.childrenAt(full, true); err != nil && !isNoNode(err) {
		n.childrenHandlers.remove(sub.id)
		return nil, fmt.Errorf("unable to watch children of %s: %w", full, err)
	}
	return sub, nil
}

// Unsubscribe removes a handler. An already armed watch is not cancelled,
// it fires once more, finds no handler and lapses.
func (c *Client) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	switch sub.kind {
	case subscriptionState:
		c.stateHandlers.remove(sub.id)
	case subscriptionData:
		if n, ok := c.nodes.get(sub.path); ok {
			n.dataHandlers.remove(sub.id)
		}
	case subscriptionChildren:
		if n, ok := c.nodes.get(sub.path); ok {
			n.childrenHandlers.remove(sub.id)
		}
	}
}

// Snapshot returns the local view of path, for inspection only.
func (c *Client) Snapshot(path string) (NodeSnapshot, bool) {
	n, ok := c.nodes.get(c.fullPath(path))
	if !ok {
		return NodeSnapshot{}, false
	}
	return n.Snapshot(), true
}

// TrackedPaths returns every full path this client has a node entry for.
func (c *Client) TrackedPaths() []string {
	nodes := c.nodes.all()
	paths := make([]string, 0, len(nodes))
	for _, n := range nodes {
		paths = append(paths, n.path)
	}
	return paths
}

func (c *Client) fullPath(path string) string {
	return normalizePath(c.opts.BaseRoutePath, path)
}
