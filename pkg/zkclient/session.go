package zkclient

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/samuel/go-zookeeper/zk"
)

//go:generate mockgen -source=session.go -destination=mock_session_test.go -package=zkclient

// Watcher receives every event of a session: connection state changes with an
// empty path and one event per fired watch. It must not block.
type Watcher func(event Event)

// Session is one live connection to a coordination ensemble. Every watch set
// through it is one-shot and is reported once through the session's Watcher.
type Session interface {
	Exists(path string, watch bool) (bool, *zk.Stat, error)
	Get(path string, watch bool) ([]byte, *zk.Stat, error)
	Children(path string, watch bool) ([]string, *zk.Stat, error)
	Create(path string, data []byte, acl []zk.ACL, mode NodeMode) (string, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Delete(path string, version int32) error
	SessionID() int64
	Close()
}

// DialConfig holds what a Dialer needs to open a session.
type DialConfig struct {
	SessionTimeout time.Duration
	// SessionID and SessionPasswd reattach to a prior session when non-zero.
	SessionID     int64
	SessionPasswd []byte
	ReadOnly      bool
	Logger        zerolog.Logger
}

// Dialer opens a new session to the ensemble members in servers.
type Dialer func(servers []string, cfg DialConfig, watcher Watcher) (Session, error)
