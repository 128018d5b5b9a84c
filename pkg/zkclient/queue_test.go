package zkclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue(t *testing.T) {
	q := newEventQueue()
	done := make(chan struct{})

	for _, p := range []string{"/a", "/b", "/c"} {
		q.push(Event{Type: EventNodeDataChanged, Path: p})
	}
	assert.Equal(t, 3, q.len())

	for _, p := range []string{"/a", "/b", "/c"} {
		event, ok := q.pop(done)
		require.True(t, ok)
		assert.Equal(t, p, event.Path)
	}

	popped := make(chan Event)
	go func() {
		event, _ := q.pop(done)
		popped <- event
	}()
	q.push(Event{Path: "/d"})
	select {
	case event := <-popped:
		assert.Equal(t, "/d", event.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("pop did not wake up")
	}

	close(done)
	_, ok := q.pop(done)
	assert.False(t, ok)
}

func TestHandlerList(t *testing.T) {
	var l handlerList[func() string]
	l.add(1, func() string { return "first" })
	l.add(2, func() string { return "second" })
	l.add(3, func() string { return "third" })

	assert.True(t, l.remove(2))
	assert.False(t, l.remove(2))

	var got []string
	for _, h := range l.list() {
		got = append(got, h())
	}
	assert.Equal(t, []string{"first", "third"}, got)
	assert.Equal(t, 2, l.len())
}
