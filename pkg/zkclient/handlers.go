package zkclient

import "sync"

type subscriptionKind int

const (
	subscriptionData subscriptionKind = iota
	subscriptionChildren
	subscriptionState
)

// Subscription identifies a registered handler, pass it to Client.Unsubscribe.
type Subscription struct {
	id   uint64
	kind subscriptionKind
	path string
}

// Path returns the full watched path, empty for connection state subscriptions.
func (s *Subscription) Path() string {
	return s.path
}

type registered[H any] struct {
	id      uint64
	handler H
}

// handlerList is an ordered list of handlers, invoked in registration order.
type handlerList[H any] struct {
	lock  sync.RWMutex
	items []registered[H]
}

func (l *handlerList[H]) add(id uint64, handler H) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.items = append(l.items, registered[H]{id: id, handler: handler})
}

func (l *handlerList[H]) remove(id uint64) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i, item := range l.items {
		if item.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// list returns a copy, so handlers may unsubscribe while being invoked.
func (l *handlerList[H]) list() []H {
	l.lock.RLock()
	defer l.lock.RUnlock()
	result := make([]H, 0, len(l.items))
	for _, item := range l.items {
		result = append(result, item.handler)
	}
	return result
}

func (l *handlerList[H]) len() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return len(l.items)
}
