package zkclient

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// eventQueue is an unbounded FIFO of events drained by a single goroutine.
// Pushing never blocks, so the session driver is never held up by slow handlers.
type eventQueue struct {
	lock   sync.Mutex
	items  *linkedlistqueue.Queue
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		items:  linkedlistqueue.New(),
		signal: make(chan struct{}, 1),
	}
}

func (q *eventQueue) push(event Event) {
	q.lock.Lock()
	q.items.Enqueue(event)
	q.lock.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop blocks until an event is available or done is closed.
func (q *eventQueue) pop(done <-chan struct{}) (Event, bool) {
	for {
		q.lock.Lock()
		v, ok := q.items.Dequeue()
		q.lock.Unlock()
		if ok {
			return v.(Event), true
		}

		select {
		case <-q.signal:
		case <-done:
			return Event{}, false
		}
	}
}

func (q *eventQueue) len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.items.Size()
}
