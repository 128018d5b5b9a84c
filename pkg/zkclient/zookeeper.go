package zkclient

import (
	"github.com/rs/zerolog"
	"github.com/samuel/go-zookeeper/zk"
)

// zkSession adapts a go-zookeeper connection to the Session interface.
// Watch events are not read from the per-watch channels, the connection
// reports each of them once through the event callback.
type zkSession struct {
	conn *zk.Conn
}

// DialZookeeper is the default Dialer, it connects with go-zookeeper.
// The connection is established in the background; the watcher receives
// SyncConnected once the session handshake completed.
func DialZookeeper(servers []string, cfg DialConfig, watcher Watcher) (Session, error) {
	if cfg.SessionID != 0 || cfg.ReadOnly {
		cfg.Logger.Warn().
			Int64("session_id", cfg.SessionID).
			Bool("read_only", cfg.ReadOnly).
			Msg("session reattachment and read-only mode are not supported by the zookeeper driver, ignoring")
	}

	conn, _, err := zk.Connect(
		servers,
		cfg.SessionTimeout,
		zk.WithLogger(zkLogger{logger: cfg.Logger}),
		zk.WithEventCallback(func(ev zk.Event) {
			if event, ok := translateEvent(ev); ok {
				watcher(event)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return &zkSession{conn: conn}, nil
}

func (s *zkSession) Exists(path string, watch bool) (bool, *zk.Stat, error) {
	if watch {
		ok, stat, _, err := s.conn.ExistsW(path)
		return ok, stat, err
	}
	return s.conn.Exists(path)
}

func (s *zkSession) Get(path string, watch bool) ([]byte, *zk.Stat, error) {
	if watch {
		data, stat, _, err := s.conn.GetW(path)
		return data, stat, err
	}
	return s.conn.Get(path)
}

func (s *zkSession) Children(path string, watch bool) ([]string, *zk.Stat, error) {
	if watch {
		children, stat, _, err := s.conn.ChildrenW(path)
		return children, stat, err
	}
	return s.conn.Children(path)
}

func (s *zkSession) Create(path string, data []byte, acl []zk.ACL, mode NodeMode) (string, error) {
	return s.conn.Create(path, data, mode.Flags(), acl)
}

func (s *zkSession) Set(path string, data []byte, version int32) (*zk.Stat, error) {
	return s.conn.Set(path, data, version)
}

func (s *zkSession) Delete(path string, version int32) error {
	return s.conn.Delete(path, version)
}

func (s *zkSession) SessionID() int64 {
	return s.conn.SessionID()
}

func (s *zkSession) Close() {
	s.conn.Close()
}

// translateEvent maps a go-zookeeper event. Transitional states and
// watch invalidation notices are dropped.
func translateEvent(ev zk.Event) (Event, bool) {
	switch ev.Type {
	case zk.EventSession:
		var state ConnectionState
		switch ev.State {
		case zk.StateHasSession:
			state = StateSyncConnected
		case zk.StateConnectedReadOnly:
			state = StateReadOnlyConnected
		case zk.StateDisconnected:
			state = StateDisconnected
		case zk.StateExpired:
			state = StateExpired
		case zk.StateAuthFailed:
			state = StateAuthFailed
		default:
			return Event{}, false
		}
		return Event{Type: EventNone, State: state}, true
	case zk.EventNodeCreated:
		return Event{Type: EventNodeCreated, State: StateSyncConnected, Path: ev.Path}, true
	case zk.EventNodeDeleted:
		return Event{Type: EventNodeDeleted, State: StateSyncConnected, Path: ev.Path}, true
	case zk.EventNodeDataChanged:
		return Event{Type: EventNodeDataChanged, State: StateSyncConnected, Path: ev.Path}, true
	case zk.EventNodeChildrenChanged:
		return Event{Type: EventNodeChildrenChanged, State: StateSyncConnected, Path: ev.Path}, true
	}
	return Event{}, false
}

// zkLogger forwards the driver's printf logging to zerolog.
type zkLogger struct {
	logger zerolog.Logger
}

func (l zkLogger) Printf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}
