package zkclient

import (
	"errors"
	"fmt"
)

// CreatePersistent creates a persistent node with open access.
func (c *Client) CreatePersistent(path string, data []byte) error {
	_, err := c.Create(path, data, nil, ModePersistent)
	return err
}

// CreateEphemeral creates a node which is deleted when the session ends.
// With restoration enabled it is created again on the next session.
func (c *Client) CreateEphemeral(path string, data []byte) error {
	_, err := c.Create(path, data, nil, ModeEphemeral)
	return err
}

// CreatePersistentSequential creates a persistent node named path plus a
// counter and returns the created path.
func (c *Client) CreatePersistentSequential(path string, data []byte) (string, error) {
	return c.Create(path, data, nil, ModePersistentSequential)
}

// CreateEphemeralSequential creates an ephemeral node named path plus a
// counter and returns the created path.
func (c *Client) CreateEphemeralSequential(path string, data []byte) (string, error) {
	return c.Create(path, data, nil, ModeEphemeralSequential)
}

// CreateRecursive creates path and every missing ancestor as persistent
// nodes. Ancestors are created empty, path gets data. Existing nodes on the
// way are left untouched.
func (c *Client) CreateRecursive(path string, data []byte) error {
	full := c.fullPath(path)
	if full == "/" {
		return nil
	}

	err := c.createPaths(full, data)
	if isNoNode(err) {
		// an ancestor was removed while walking down, walk once more
		err = c.createPaths(full, data)
	}
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", full, err)
	}
	return nil
}

func (c *Client) createPaths(full string, data []byte) error {
	for _, p := range splitPaths(full) {
		var value []byte
		if p == full {
			value = data
		}
		if _, err := c.createAt(p, value, nil, ModePersistent); err != nil && !errors.Is(err, ErrNodeExists) {
			return err
		}
	}
	return nil
}

// DeleteRecursive deletes path and everything below it, children first.
// A path which does not exist counts as deleted.
func (c *Client) DeleteRecursive(path string) error {
	return c.deleteTree(c.fullPath(path))
}

func (c *Client) deleteTree(full string) error {
	children, err := c.childrenAt(full, false)
	if isNoNode(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to list children of %s: %w", full, err)
	}

	for _, child := range children {
		if err := c.deleteTree(childPath(full, child)); err != nil {
			return err
		}
	}

	if full == "/" {
		return nil
	}
	if err := c.deleteAt(full, -1); err != nil && !isNoNode(err) {
		return fmt.Errorf("unable to delete %s: %w", full, err)
	}
	return nil
}
