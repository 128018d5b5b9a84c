// Package zktest provides an in-memory ensemble for tests. It keeps a znode
// tree, sessions with ephemeral ownership and one-shot watches, and lets tests
// disconnect, expire or fail sessions on demand.
package zktest

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/samuel/go-zookeeper/zk"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

type znode struct {
	data     []byte
	acl      []zk.ACL
	stat     zk.Stat
	sequence int32
	children map[string]struct{}
}

// Ensemble is a single in-memory coordination service shared by every
// session dialed through its Dialer.
type Ensemble struct {
	lock          sync.Mutex
	nodes         map[string]*znode
	sessions      map[int64]*Session
	lastSessionID int64
	dials         int
	dialErr       error
}

// New returns an ensemble holding only the root node.
func New() *Ensemble {
	return &Ensemble{
		nodes: map[string]*znode{
			"/": {children: make(map[string]struct{})},
		},
		sessions: make(map[int64]*Session),
	}
}

// Dialer returns a zkclient.Dialer opening sessions on this ensemble. The
// session reports SyncConnected before the dialer returns.
func (e *Ensemble) Dialer() zkclient.Dialer {
	return func(servers []string, cfg zkclient.DialConfig, watcher zkclient.Watcher) (zkclient.Session, error) {
		e.lock.Lock()
		e.dials++
		if e.dialErr != nil {
			err := e.dialErr
			e.lock.Unlock()
			return nil, err
		}
		e.lastSessionID++
		s := &Session{
			ensemble:     e,
			id:           e.lastSessionID,
			watcher:      watcher,
			connected:    true,
			dataWatches:  make(map[string]struct{}),
			childWatches: make(map[string]struct{}),
		}
		e.sessions[s.id] = s
		e.lock.Unlock()

		watcher(zkclient.Event{Type: zkclient.EventNone, State: zkclient.StateSyncConnected})
		return s, nil
	}
}

// FailDials makes every following dial fail with err, nil restores dialing.
func (e *Ensemble) FailDials(err error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.dialErr = err
}

// Dials returns how many times the dialer was called.
func (e *Ensemble) Dials() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.dials
}

// Session returns the open session with the given id, nil if there is none.
func (e *Ensemble) Session(id int64) *Session {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.sessions[id]
}

// Exists reports whether path is in the tree.
func (e *Ensemble) Exists(p string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	_, ok := e.nodes[p]
	return ok
}

// Get returns the data and stat of path.
func (e *Ensemble) Get(p string) ([]byte, zk.Stat, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()
	n, ok := e.nodes[p]
	if !ok {
		return nil, zk.Stat{}, false
	}
	return append([]byte(nil), n.data...), n.stat, true
}

// Children returns the sorted child names of path.
func (e *Ensemble) Children(p string) []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	n, ok := e.nodes[p]
	if !ok {
		return nil
	}
	return sortedChildren(n)
}

type delivery struct {
	watcher zkclient.Watcher
	event   zkclient.Event
}

func deliver(deliveries []delivery) {
	for _, d := range deliveries {
		d.watcher(d.event)
	}
}

// trigger consumes the watches on p and returns one delivery per session.
// Must be called with the lock held.
func (e *Ensemble) trigger(p string, eventType zkclient.EventType) []delivery {
	var result []delivery
	for _, s := range e.sessions {
		fired := false
		switch eventType {
		case zkclient.EventNodeChildrenChanged:
			if _, ok := s.childWatches[p]; ok {
				delete(s.childWatches, p)
				fired = true
			}
		case zkclient.EventNodeDeleted:
			if _, ok := s.dataWatches[p]; ok {
				delete(s.dataWatches, p)
				fired = true
			}
			if _, ok := s.childWatches[p]; ok {
				delete(s.childWatches, p)
				fired = true
			}
		default:
			if _, ok := s.dataWatches[p]; ok {
				delete(s.dataWatches, p)
				fired = true
			}
		}
		if fired && s.connected {
			result = append(result, delivery{
				watcher: s.watcher,
				event:   zkclient.Event{Type: eventType, State: zkclient.StateSyncConnected, Path: p},
			})
		}
	}
	return result
}

func (e *Ensemble) create(owner int64, p string, data []byte, acl []zk.ACL, mode zkclient.NodeMode) (string, []delivery, error) {
	if err := validatePath(p, mode.IsSequential()); err != nil {
		return "", nil, err
	}
	parentPath := path.Dir(p)
	parent, ok := e.nodes[parentPath]
	if !ok {
		return "", nil, zk.ErrNoNode
	}
	if parent.stat.EphemeralOwner != 0 {
		return "", nil, zk.ErrNoChildrenForEphemerals
	}

	if mode.IsSequential() {
		p = fmt.Sprintf("%s%010d", p, parent.sequence)
		parent.sequence++
	}
	if _, ok := e.nodes[p]; ok {
		return "", nil, zk.ErrNodeExists
	}

	n := &znode{
		data:     append([]byte(nil), data...),
		acl:      acl,
		children: make(map[string]struct{}),
		stat:     zk.Stat{DataLength: int32(len(data))},
	}
	if mode.IsEphemeral() {
		n.stat.EphemeralOwner = owner
	}
	e.nodes[p] = n
	parent.children[path.Base(p)] = struct{}{}
	parent.stat.Cversion++
	parent.stat.NumChildren = int32(len(parent.children))

	deliveries := e.trigger(p, zkclient.EventNodeCreated)
	deliveries = append(deliveries, e.trigger(parentPath, zkclient.EventNodeChildrenChanged)...)
	return p, deliveries, nil
}

func (e *Ensemble) delete(p string, version int32) ([]delivery, error) {
	if p == "/" {
		return nil, zk.ErrInvalidPath
	}
	n, ok := e.nodes[p]
	if !ok {
		return nil, zk.ErrNoNode
	}
	if version != -1 && version != n.stat.Version {
		return nil, zk.ErrBadVersion
	}
	if len(n.children) > 0 {
		return nil, zk.ErrNotEmpty
	}

	delete(e.nodes, p)
	parentPath := path.Dir(p)
	parent := e.nodes[parentPath]
	delete(parent.children, path.Base(p))
	parent.stat.Cversion++
	parent.stat.NumChildren = int32(len(parent.children))

	deliveries := e.trigger(p, zkclient.EventNodeDeleted)
	deliveries = append(deliveries, e.trigger(parentPath, zkclient.EventNodeChildrenChanged)...)
	return deliveries, nil
}

// removeSession deletes the ephemeral nodes of id and forgets the session.
// Must be called with the lock held.
func (e *Ensemble) removeSession(id int64) []delivery {
	delete(e.sessions, id)

	var owned []string
	for p, n := range e.nodes {
		if n.stat.EphemeralOwner == id {
			owned = append(owned, p)
		}
	}
	sort.Strings(owned)

	var deliveries []delivery
	for _, p := range owned {
		d, _ := e.delete(p, -1)
		deliveries = append(deliveries, d...)
	}
	return deliveries
}

func validatePath(p string, sequential bool) error {
	if p == "" || p[0] != '/' {
		return zk.ErrInvalidPath
	}
	if p == "/" {
		return zk.ErrNodeExists
	}
	if strings.HasSuffix(p, "/") && !sequential {
		return zk.ErrInvalidPath
	}
	if path.Clean(p) != strings.TrimSuffix(p, "/") {
		return zk.ErrInvalidPath
	}
	return nil
}

func sortedChildren(n *znode) []string {
	children := make([]string, 0, len(n.children))
	for c := range n.children {
		children = append(children, c)
	}
	sort.Strings(children)
	return children
}
