package zkclient

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/samuel/go-zookeeper/zk"

	"github.com/thinker0/go.zkensemble/pkg/metric"
)

// retryPause spaces attempts which failed while the session still looked connected.
const retryPause = 20 * time.Millisecond

// RetryUntilConnected runs operation until it succeeds or fails with a
// non transient error. After a transient failure it waits for the session
// to come back. Once more than the operating span timeout has passed since
// the first attempt, ErrRetryTimeout wrapping the last failure is returned.
func (c *Client) RetryUntilConnected(operation func() error) error {
	startTime := c.clock.Now()
	for {
		err := operation()
		if err == nil || !IsTransient(err) {
			return err
		}

		if elapsed := c.clock.Since(startTime); elapsed > c.opts.OperatingSpanTimeout {
			metric.Incr(metric.RetryTimeout, metric.BuildTags(metric.TagEnsemble, c.connString))
			return fmt.Errorf("%w after %s: %w", ErrRetryTimeout, elapsed, err)
		}
		if c.closed.Load() {
			return ErrClientClosed
		}

		runtime.Gosched()
		if c.State() == StateSyncConnected {
			// the loss of the connection has not been reported yet
			c.pause(retryPause)
			continue
		}
		c.WaitForState(StateSyncConnected, c.opts.OperatingSpanTimeout)
	}
}

// pause sleeps for d on the client clock or until the client is closed.
func (c *Client) pause(d time.Duration) {
	select {
	case <-c.clock.After(d):
	case <-c.done:
	}
}

func isNoNode(err error) bool {
	return errors.Is(err, ErrNoNode)
}

func (c *Client) getDataAt(full string, watch bool) ([]byte, *zk.Stat, error) {
	var data []byte
	var stat *zk.Stat
	err := c.RetryUntilConnected(func() error {
		session, err := c.currentSession()
		if err != nil {
			return err
		}
		data, stat, err = session.Get(full, watch)
		return err
	})

	n := c.nodes.getOrInit(full)
	switch {
	case err == nil:
		n.recordData(data, stat)
	case isNoNode(err):
		n.clear()
	}
	return data, stat, err
}

func (c *Client) childrenAt(full string, watch bool) ([]string, error) {
	var children []string
	err := c.RetryUntilConnected(func() error {
		session, err := c.currentSession()
		if err != nil {
			return err
		}
		children, _, err = session.Children(full, watch)
		return err
	})

	n := c.nodes.getOrInit(full)
	switch {
	case err == nil:
		n.recordChildren(children)
	case isNoNode(err):
		n.clear()
	}
	return children, err
}

func (c *Client) existsAt(full string, watch bool) (bool, error) {
	var exists bool
	var stat *zk.Stat
	err := c.RetryUntilConnected(func() error {
		session, err := c.currentSession()
		if err != nil {
			return err
		}
		exists, stat, err = session.Exists(full, watch)
		return err
	})
	if err != nil {
		return false, err
	}
	c.nodes.getOrInit(full).recordExists(exists, stat)
	return exists, nil
}

// createAt returns the full path of the created node, which differs from
// full for sequential modes.
func (c *Client) createAt(full string, data []byte, acl []zk.ACL, mode NodeMode) (string, error) {
	if acl == nil {
		acl = WorldACL()
	}
	var created string
	err := c.RetryUntilConnected(func() error {
		session, err := c.currentSession()
		if err != nil {
			return err
		}
		created, err = session.Create(full, data, acl, mode)
		return err
	})
	if err != nil {
		return "", err
	}
	c.nodes.getOrInit(created).recordCreated(data, acl, mode)
	return created, nil
}

func (c *Client) setAt(full string, data []byte, version int32) (*zk.Stat, error) {
	var stat *zk.Stat
	err := c.RetryUntilConnected(func() error {
		session, err := c.currentSession()
		if err != nil {
			return err
		}
		stat, err = session.Set(full, data, version)
		return err
	})

	n := c.nodes.getOrInit(full)
	switch {
	case err == nil:
		n.recordData(data, stat)
	case isNoNode(err):
		n.clear()
	}
	return stat, err
}

func (c *Client) deleteAt(full string, version int32) error {
	err := c.RetryUntilConnected(func() error {
		session, err := c.currentSession()
		if err != nil {
			return err
		}
		return session.Delete(full, version)
	})
	if err == nil || isNoNode(err) {
		c.nodes.getOrInit(full).clear()
	}
	return err
}

// GetData returns the data of path. With watch set, the next change of the
// node is reported to the data handlers of path.
func (c *Client) GetData(path string, watch bool) ([]byte, *zk.Stat, error) {
	return c.getDataAt(c.fullPath(path), watch)
}

// GetChildren returns the child names of path.
func (c *Client) GetChildren(path string, watch bool) ([]string, error) {
	return c.childrenAt(c.fullPath(path), watch)
}

func (c *Client) Exists(path string, watch bool) (bool, error) {
	return c.existsAt(c.fullPath(path), watch)
}

// Create creates path and returns the created path relative to the base
// route. A nil acl means open access. A sequential path ending with a slash
// creates a child named by the counter alone.
func (c *Client) Create(path string, data []byte, acl []zk.ACL, mode NodeMode) (string, error) {
	full := c.fullPath(path)
	if mode.IsSequential() && strings.HasSuffix(path, "/") && full != "/" {
		full += "/"
	}
	created, err := c.createAt(full, data, acl, mode)
	if err != nil {
		return "", err
	}
	return relativePath(c.opts.BaseRoutePath, created), nil
}

// SetData writes data if the node version matches, -1 matches any version.
func (c *Client) SetData(path string, data []byte, version int32) (*zk.Stat, error) {
	return c.setAt(c.fullPath(path), data, version)
}

func (c *Client) Delete(path string, version int32) error {
	return c.deleteAt(c.fullPath(path), version)
}
