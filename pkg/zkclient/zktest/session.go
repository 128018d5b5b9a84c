package zktest

import (
	"sort"

	"github.com/samuel/go-zookeeper/zk"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

// Session is one session on an Ensemble. It implements zkclient.Session.
// Fields are guarded by the ensemble lock.
type Session struct {
	ensemble *Ensemble
	id       int64
	watcher  zkclient.Watcher

	connected bool
	expired   bool
	closed    bool

	dataWatches  map[string]struct{}
	childWatches map[string]struct{}
}

// available returns the error a request fails with in the current state.
func (s *Session) available() error {
	switch {
	case s.closed:
		return zk.ErrClosing
	case s.expired:
		return zk.ErrSessionExpired
	case !s.connected:
		return zk.ErrConnectionClosed
	}
	return nil
}

func (s *Session) Exists(p string, watch bool) (bool, *zk.Stat, error) {
	e := s.ensemble
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := s.available(); err != nil {
		return false, nil, err
	}

	if watch {
		s.dataWatches[p] = struct{}{}
	}
	n, ok := e.nodes[p]
	if !ok {
		return false, nil, nil
	}
	stat := n.stat
	return true, &stat, nil
}

func (s *Session) Get(p string, watch bool) ([]byte, *zk.Stat, error) {
	e := s.ensemble
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := s.available(); err != nil {
		return nil, nil, err
	}

	n, ok := e.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	if watch {
		s.dataWatches[p] = struct{}{}
	}
	stat := n.stat
	return append([]byte(nil), n.data...), &stat, nil
}

func (s *Session) Children(p string, watch bool) ([]string, *zk.Stat, error) {
	e := s.ensemble
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := s.available(); err != nil {
		return nil, nil, err
	}

	n, ok := e.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	if watch {
		s.childWatches[p] = struct{}{}
	}
	stat := n.stat
	return sortedChildren(n), &stat, nil
}

func (s *Session) Create(p string, data []byte, acl []zk.ACL, mode zkclient.NodeMode) (string, error) {
	e := s.ensemble
	e.lock.Lock()
	if err := s.available(); err != nil {
		e.lock.Unlock()
		return "", err
	}
	created, deliveries, err := e.create(s.id, p, data, acl, mode)
	e.lock.Unlock()

	deliver(deliveries)
	return created, err
}

func (s *Session) Set(p string, data []byte, version int32) (*zk.Stat, error) {
	e := s.ensemble
	e.lock.Lock()
	if err := s.available(); err != nil {
		e.lock.Unlock()
		return nil, err
	}

	n, ok := e.nodes[p]
	if !ok {
		e.lock.Unlock()
		return nil, zk.ErrNoNode
	}
	if version != -1 && version != n.stat.Version {
		e.lock.Unlock()
		return nil, zk.ErrBadVersion
	}
	n.data = append([]byte(nil), data...)
	n.stat.Version++
	n.stat.DataLength = int32(len(data))
	stat := n.stat
	deliveries := e.trigger(p, zkclient.EventNodeDataChanged)
	e.lock.Unlock()

	deliver(deliveries)
	return &stat, nil
}

func (s *Session) Delete(p string, version int32) error {
	e := s.ensemble
	e.lock.Lock()
	if err := s.available(); err != nil {
		e.lock.Unlock()
		return err
	}
	deliveries, err := e.delete(p, version)
	e.lock.Unlock()

	deliver(deliveries)
	return err
}

func (s *Session) SessionID() int64 {
	return s.id
}

// Close ends the session and deletes its ephemeral nodes.
func (s *Session) Close() {
	e := s.ensemble
	e.lock.Lock()
	if s.closed {
		e.lock.Unlock()
		return
	}
	s.closed = true
	s.connected = false
	deliveries := e.removeSession(s.id)
	e.lock.Unlock()

	deliver(deliveries)
}

// Disconnect drops the connection but keeps the session, its ephemeral
// nodes and its watches. Requests fail with a connection loss until Reconnect.
func (s *Session) Disconnect() {
	s.setConnected(false, zkclient.StateDisconnected)
}

// Reconnect restores a disconnected session.
func (s *Session) Reconnect() {
	s.setConnected(true, zkclient.StateSyncConnected)
}

// FailAuth reports an authentication failure, the session stays unusable.
func (s *Session) FailAuth() {
	s.setConnected(false, zkclient.StateAuthFailed)
}

func (s *Session) setConnected(connected bool, state zkclient.ConnectionState) {
	e := s.ensemble
	e.lock.Lock()
	if s.closed || s.expired {
		e.lock.Unlock()
		return
	}
	s.connected = connected
	watcher := s.watcher
	e.lock.Unlock()

	watcher(zkclient.Event{Type: zkclient.EventNone, State: state})
}

// Expire ends the session the way the ensemble does after the session
// timeout: its ephemeral nodes and watches are gone and the owner is told
// the session expired.
func (s *Session) Expire() {
	e := s.ensemble
	e.lock.Lock()
	if s.closed || s.expired {
		e.lock.Unlock()
		return
	}
	s.expired = true
	s.connected = false
	deliveries := e.removeSession(s.id)
	watcher := s.watcher
	e.lock.Unlock()

	deliver(deliveries)
	watcher(zkclient.Event{Type: zkclient.EventNone, State: zkclient.StateExpired})
}

// Watches returns the sorted paths with a pending data watch and with a
// pending children watch.
func (s *Session) Watches() (data []string, children []string) {
	e := s.ensemble
	e.lock.Lock()
	defer e.lock.Unlock()
	for p := range s.dataWatches {
		data = append(data, p)
	}
	for p := range s.childWatches {
		children = append(children, p)
	}
	sort.Strings(data)
	sort.Strings(children)
	return data, children
}
