package zkclient

import (
	"errors"
	"fmt"

	"github.com/samuel/go-zookeeper/zk"
)

// ConnectionState is the client observable state of a session.
type ConnectionState int

const (
	// StateUnknown is the state before the session reported anything.
	StateUnknown ConnectionState = iota
	StateDisconnected
	StateExpired
	StateAuthFailed
	StateSyncConnected
	StateReadOnlyConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateExpired:
		return "Expired"
	case StateAuthFailed:
		return "AuthFailed"
	case StateSyncConnected:
		return "SyncConnected"
	case StateReadOnlyConnected:
		return "ReadOnlyConnected"
	}
	return "Unknown"
}

// IsConnected returns true for states in which requests can be served.
func (s ConnectionState) IsConnected() bool {
	return s == StateSyncConnected || s == StateReadOnlyConnected
}

// NodeMode is the kind of znode to create.
type NodeMode int

const (
	ModePersistent NodeMode = iota
	ModeEphemeral
	ModePersistentSequential
	ModeEphemeralSequential
)

func (m NodeMode) String() string {
	switch m {
	case ModeEphemeral:
		return "Ephemeral"
	case ModePersistentSequential:
		return "PersistentSequential"
	case ModeEphemeralSequential:
		return "EphemeralSequential"
	}
	return "Persistent"
}

// IsEphemeral returns true if nodes of this mode disappear with their session.
func (m NodeMode) IsEphemeral() bool {
	return m == ModeEphemeral || m == ModeEphemeralSequential
}

// IsSequential returns true if the ensemble appends a counter to the node name.
func (m NodeMode) IsSequential() bool {
	return m == ModePersistentSequential || m == ModeEphemeralSequential
}

// Flags returns the create flags understood by the zookeeper wire protocol.
func (m NodeMode) Flags() int32 {
	var flags int32
	if m.IsEphemeral() {
		flags |= zk.FlagEphemeral
	}
	if m.IsSequential() {
		flags |= zk.FlagSequence
	}
	return flags
}

// EventType is the type of a per-path watch event.
type EventType int

const (
	// EventNone is the generic event type carried by connection state events.
	EventNone EventType = iota
	EventNodeCreated
	EventNodeDeleted
	EventNodeDataChanged
	EventNodeChildrenChanged

	// eventReconnected is delivered by the client itself to every tracked path
	// after the session came back.
	eventReconnected
)

func (t EventType) String() string {
	switch t {
	case EventNodeCreated:
		return "NodeCreated"
	case EventNodeDeleted:
		return "NodeDeleted"
	case EventNodeDataChanged:
		return "NodeDataChanged"
	case EventNodeChildrenChanged:
		return "NodeChildrenChanged"
	case eventReconnected:
		return "Reconnected"
	}
	return "None"
}

// isDataEvent reports whether the event is routed to data handlers.
// Everything else, including EventNone, goes to children handlers.
func (t EventType) isDataEvent() bool {
	return t == EventNodeCreated || t == EventNodeDataChanged || t == EventNodeDeleted
}

// Event is delivered by a Session to its Watcher. Connection state events
// have an empty Path.
type Event struct {
	Type  EventType
	State ConnectionState
	Path  string
}

func (e Event) String() string {
	if e.Path == "" {
		return fmt.Sprintf("state %s", e.State)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Path)
}

// DataChange is passed to data handlers after a watch fired.
// Data is nil when the node does not exist anymore.
type DataChange struct {
	Path string
	Type EventType
	Data []byte
}

// ChildrenChange is passed to children handlers after a watch fired.
// Children is nil when the node does not exist anymore.
type ChildrenChange struct {
	Path     string
	Type     EventType
	Children []string
}

type (
	DataChangeHandler     func(change DataChange)
	ChildrenChangeHandler func(change ChildrenChange)
	StateChangeHandler    func(state ConnectionState)
)

var (
	// ErrRetryTimeout is returned when an operation kept failing on transient
	// errors for longer than the operating span timeout.
	ErrRetryTimeout = errors.New("zkclient: retry timeout")
	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("zkclient: client closed")

	ErrNoNode           = zk.ErrNoNode
	ErrNodeExists       = zk.ErrNodeExists
	ErrAuthFailed       = zk.ErrAuthFailed
	ErrBadVersion       = zk.ErrBadVersion
	ErrNotEmpty         = zk.ErrNotEmpty
	ErrSessionExpired   = zk.ErrSessionExpired
	ErrConnectionClosed = zk.ErrConnectionClosed
)

// IsTransient returns true for errors caused by a lost connection or session
// which are worth retrying once the session is back.
func IsTransient(err error) bool {
	return errors.Is(err, zk.ErrConnectionClosed) ||
		errors.Is(err, zk.ErrSessionExpired) ||
		errors.Is(err, zk.ErrNoServer) ||
		errors.Is(err, zk.ErrClosing) ||
		errors.Is(err, zk.ErrSessionMoved)
}

// WorldACL is the open ACL used by the Create helpers.
func WorldACL() []zk.ACL {
	return zk.WorldACL(zk.PermAll)
}
