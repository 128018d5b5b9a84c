package serversets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

// An Endpoint is a service registered in a server set. The member node is
// ephemeral and is created again by the client after its session expired.
type Endpoint struct {
	Host string
	Port int

	client *zkclient.Client
	key    string

	closeOnce sync.Once
	closeErr  error
}

// RegisterEndpoint registers host:port as a member of the set.
func (ss *ServerSet) RegisterEndpoint(host string, port int) (*Endpoint, error) {
	if err := ss.createFullPath(); err != nil {
		return nil, err
	}

	data, err := ss.ZKFmt.Create(host, port).Marshal()
	if err != nil {
		return nil, fmt.Errorf("unable to encode member record: %w", err)
	}

	key, err := ss.client.CreateEphemeralSequential(ss.directoryPath()+"/"+ss.ZKFmt.Prefix(), data)
	if err != nil {
		return nil, fmt.Errorf("unable to register endpoint %s:%d: %w", host, port, err)
	}
	ss.logger.Info().Str("member", key).Msgf("registered endpoint %s:%d", host, port)

	return &Endpoint{
		Host:   host,
		Port:   port,
		client: ss.client,
		key:    key,
	}, nil
}

// Key returns the path of the member node.
func (ep *Endpoint) Key() string {
	return ep.key
}

// Close removes the member node. Calling Close again returns the first result.
func (ep *Endpoint) Close() error {
	ep.closeOnce.Do(func() {
		err := ep.client.Delete(ep.key, -1)
		if err != nil && !errors.Is(err, zkclient.ErrNoNode) {
			ep.closeErr = fmt.Errorf("unable to unregister endpoint %s: %w", ep.key, err)
		}
	})
	return ep.closeErr
}
