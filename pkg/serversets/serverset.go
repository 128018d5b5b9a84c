// Package serversets registers service endpoints as ephemeral member nodes
// and watches the members of a service, in the Finagle server set layout.
package serversets

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

// A ServerSet represents a service with a set of servers that may change over time.
// The master lists of servers is kept as ephemeral nodes in Zookeeper.
type ServerSet struct {
	ZKFmt ZKFmt

	client *zkclient.Client
	logger zerolog.Logger
}

// New creates a new ServerSet object that can then be watched
// or have an endpoint added to. The service name must not contain
// any slashes. Will panic if it does.
func New(role string, environment string, service string, client *zkclient.Client) *ServerSet {
	if strings.Contains(service, "/") {
		panic(fmt.Errorf("service name (%s) must not contain slashes", service))
	}
	return NewP(client, NewFinagleFmt(role, environment, service))
}

// NewP creates a ServerSet with a custom member layout and encoding.
func NewP(client *zkclient.Client, zkFmt ZKFmt) *ServerSet {
	return &ServerSet{
		ZKFmt:  zkFmt,
		client: client,
		logger: log.Logger.With().Str("component", "serversets").Str("path", zkFmt.Path()).Logger(),
	}
}

// ConnectionString returns the ensemble this set is using.
// Useful to check if everything is configured correctly.
func (ss *ServerSet) ConnectionString() string {
	return ss.client.ConnectionString()
}

// directoryPath returns the base path of where all the ephemeral nodes will live.
func (ss *ServerSet) directoryPath() string {
	return ss.ZKFmt.Path()
}

// createFullPath makes sure all the znodes are created for the parent directories
func (ss *ServerSet) createFullPath() error {
	if err := ss.client.CreateRecursive(ss.directoryPath(), nil); err != nil {
		return fmt.Errorf("failed to create %s: %w", ss.directoryPath(), err)
	}
	return nil
}
