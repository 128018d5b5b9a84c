package zkclient

import (
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/samuel/go-zookeeper/zk"

	"github.com/thinker0/go.zkensemble/pkg/metric"
)

// NodeSnapshot is the last thing this process saw of a path. It is only used
// to restore ephemeral nodes after a session loss, reads always go to the ensemble.
type NodeSnapshot struct {
	Exists bool
	Mode   NodeMode
	Data   []byte
	// Version is -1 when unknown.
	Version  int32
	ACL      []zk.ACL
	Children []string
}

func emptySnapshot() NodeSnapshot {
	return NodeSnapshot{Version: -1}
}

// nodeEntry tracks one path of one client: its snapshot, the registered
// handlers and the watch re-arming.
type nodeEntry struct {
	client *Client
	path   string

	lock     sync.Mutex
	snapshot NodeSnapshot

	// dispatchLock keeps deliveries for this path sequential.
	dispatchLock     sync.Mutex
	dataHandlers     handlerList[DataChangeHandler]
	childrenHandlers handlerList[ChildrenChangeHandler]
}

func newNodeEntry(client *Client, path string) *nodeEntry {
	return &nodeEntry{
		client:   client,
		path:     path,
		snapshot: emptySnapshot(),
	}
}

func (n *nodeEntry) Snapshot() NodeSnapshot {
	n.lock.Lock()
	defer n.lock.Unlock()
	s := n.snapshot
	s.Data = cloneBytes(s.Data)
	s.ACL = append([]zk.ACL(nil), s.ACL...)
	s.Children = append([]string(nil), s.Children...)
	return s
}

func (n *nodeEntry) recordData(data []byte, stat *zk.Stat) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.snapshot.Exists = true
	n.snapshot.Data = cloneBytes(data)
	if stat != nil {
		n.snapshot.Version = stat.Version
	}
}

func (n *nodeEntry) recordExists(exists bool, stat *zk.Stat) {
	if !exists {
		n.clear()
		return
	}
	n.lock.Lock()
	defer n.lock.Unlock()
	n.snapshot.Exists = true
	if stat != nil {
		n.snapshot.Version = stat.Version
	}
}

func (n *nodeEntry) recordChildren(children []string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.snapshot.Exists = true
	n.snapshot.Children = append([]string(nil), children...)
}

func (n *nodeEntry) recordCreated(data []byte, acl []zk.ACL, mode NodeMode) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.snapshot = NodeSnapshot{
		Exists:  true,
		Mode:    mode,
		Data:    cloneBytes(data),
		Version: 0,
		ACL:     append([]zk.ACL(nil), acl...),
	}
}

func (n *nodeEntry) clear() {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.snapshot = emptySnapshot()
}

// handleEvent routes one fired watch. Created, data changed and deleted
// events go to the data handlers, anything else to the children handlers.
func (n *nodeEntry) handleEvent(event Event) {
	n.dispatchLock.Lock()
	defer n.dispatchLock.Unlock()

	startTime := time.Now()
	defer func() {
		metric.Timing(metric.WatchDispatchLatency, time.Since(startTime), metric.BuildTags(metric.TagEvent, event.Type.String()))
	}()

	// the node is gone whoever armed the watch, restoration must not bring it back
	if event.Type == EventNodeDeleted {
		n.clear()
	}

	switch {
	case event.Type == eventReconnected:
		n.restore()
	case event.Type.isDataEvent():
		// A re-created node must not miss the next children change.
		if event.Type == EventNodeCreated && n.childrenHandlers.len() > 0 {
			n.armChildren()
		}
		// Without data handlers nobody watches for the node coming back.
		if event.Type == EventNodeDeleted && n.childrenHandlers.len() > 0 && n.dataHandlers.len() == 0 {
			n.armData()
		}
		n.dispatchData(event.Type)
	default:
		n.dispatchChildren(event.Type)
	}
}

func (n *nodeEntry) dispatchData(eventType EventType) {
	handlers := n.dataHandlers.list()
	if len(handlers) == 0 {
		// nobody listens, let the watch lapse
		return
	}

	change := DataChange{Path: n.path, Type: eventType}
	if eventType == EventNodeDeleted {
		n.clear()
	} else {
		if eventType != EventNodeCreated {
			change.Type = EventNodeDataChanged
		}
		data, _, err := n.client.getDataAt(n.path, false)
		if err != nil && !errors.Is(err, ErrNoNode) {
			n.client.logger.Error().Err(err).Str("path", n.path).Msg("unable to fetch data after watch event")
			n.armData()
			return
		}
		change.Data = data
	}

	metric.Incr(metric.WatchDispatch, metric.BuildTags(metric.TagEvent, change.Type.String()))
	for _, handler := range handlers {
		n.invokeData(handler, change)
	}

	n.armData()
}

func (n *nodeEntry) dispatchChildren(eventType EventType) {
	handlers := n.childrenHandlers.list()
	if len(handlers) == 0 {
		return
	}

	children, err := n.client.childrenAt(n.path, false)
	if err != nil && !errors.Is(err, ErrNoNode) {
		n.client.logger.Error().Err(err).Str("path", n.path).Msg("unable to fetch children after watch event")
		n.armData()
		n.armChildren()
		return
	}

	change := ChildrenChange{Path: n.path, Type: eventType, Children: children}
	metric.Incr(metric.WatchDispatch, metric.BuildTags(metric.TagEvent, eventType.String()))
	for _, handler := range handlers {
		n.invokeChildren(handler, change)
	}

	n.armData()
	n.armChildren()
}

// armData sets an exists watch, it covers creation, deletion and data changes.
func (n *nodeEntry) armData() {
	if _, err := n.client.existsAt(n.path, true); err != nil {
		n.client.logger.Error().Err(err).Str("path", n.path).Msg("unable to re-arm data watch")
	}
}

// armChildren sets a children watch; a missing node is not an error, the
// exists watch reports its creation.
func (n *nodeEntry) armChildren() {
	if _, err := n.client.childrenAt(n.path, true); err != nil && !errors.Is(err, ErrNoNode) {
		n.client.logger.Error().Err(err).Str("path", n.path).Msg("unable to re-arm children watch")
	}
}

// restore runs after the session came back: re-creates the ephemeral node
// this client owned and refreshes the handlers.
func (n *nodeEntry) restore() {
	n.restoreEphemeral()

	if n.dataHandlers.len() > 0 {
		n.dispatchData(EventNone)
	}
	if n.childrenHandlers.len() > 0 {
		n.dispatchChildren(EventNone)
	}
}

func (n *nodeEntry) restoreEphemeral() {
	if !n.client.opts.EnableEphemeralNodeRestore {
		return
	}
	snapshot := n.Snapshot()
	if !snapshot.Exists || !snapshot.Mode.IsEphemeral() {
		return
	}

	// Sequential nodes are tracked under their created name, re-create that exact name.
	err := n.client.RetryUntilConnected(func() error {
		session, err := n.client.currentSession()
		if err != nil {
			return err
		}
		_, err = session.Create(n.path, snapshot.Data, snapshot.ACL, ModeEphemeral)
		return err
	})

	switch {
	case err == nil:
		n.recordCreated(snapshot.Data, snapshot.ACL, snapshot.Mode)
		metric.Incr(metric.EphemeralRestore, metric.BuildTags(metric.TagResult, "created"))
		n.client.logger.Info().Str("path", n.path).Msg("restored ephemeral node")
	case errors.Is(err, ErrNodeExists):
		metric.Incr(metric.EphemeralRestore, metric.BuildTags(metric.TagResult, "exists"))
		n.client.logger.Debug().Str("path", n.path).Msg("ephemeral node already exists")
	default:
		metric.Incr(metric.EphemeralRestore, metric.BuildTags(metric.TagResult, "failed"))
		n.client.logger.Error().Err(err).Str("path", n.path).Msg("unable to restore ephemeral node")
	}
}

func (n *nodeEntry) invokeData(handler DataChangeHandler, change DataChange) {
	defer n.recoverHandler()
	handler(change)
}

func (n *nodeEntry) invokeChildren(handler ChildrenChangeHandler, change ChildrenChange) {
	defer n.recoverHandler()
	handler(change)
}

func (n *nodeEntry) recoverHandler() {
	if r := recover(); r != nil {
		n.client.logger.Error().
			Str("path", n.path).
			Msgf("watch handler panicked: %v, stacktrace - %s", r, debug.Stack())
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

// nodeMap holds at most one entry per path.
type nodeMap struct {
	lock  sync.RWMutex
	nodes map[string]*nodeEntry
	init  func(path string) *nodeEntry
}

func newNodeMap(init func(path string) *nodeEntry) *nodeMap {
	return &nodeMap{
		nodes: make(map[string]*nodeEntry),
		init:  init,
	}
}

func (m *nodeMap) get(path string) (*nodeEntry, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	n, ok := m.nodes[path]
	return n, ok
}

func (m *nodeMap) getOrInit(path string) *nodeEntry {
	if n, ok := m.get(path); ok {
		return n
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	if n, ok := m.nodes[path]; ok {
		return n
	}
	n := m.init(path)
	m.nodes[path] = n
	return n
}

func (m *nodeMap) all() []*nodeEntry {
	m.lock.RLock()
	defer m.lock.RUnlock()
	result := make([]*nodeEntry, 0, len(m.nodes))
	for _, n := range m.nodes {
		result = append(result, n)
	}
	return result
}
