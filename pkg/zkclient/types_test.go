package zkclient

import (
	"fmt"
	"testing"

	"github.com/samuel/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
)

func TestNodeMode_Flags(t *testing.T) {
	testCases := []struct {
		mode      NodeMode
		flags     int32
		ephemeral bool
	}{
		{mode: ModePersistent, flags: 0},
		{mode: ModeEphemeral, flags: zk.FlagEphemeral, ephemeral: true},
		{mode: ModePersistentSequential, flags: zk.FlagSequence},
		{mode: ModeEphemeralSequential, flags: zk.FlagEphemeral | zk.FlagSequence, ephemeral: true},
	}

	for _, tc := range testCases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			assert.Equal(t, tc.flags, tc.mode.Flags())
			assert.Equal(t, tc.ephemeral, tc.mode.IsEphemeral())
		})
	}
}

func TestEventType_IsDataEvent(t *testing.T) {
	assert.True(t, EventNodeCreated.isDataEvent())
	assert.True(t, EventNodeDataChanged.isDataEvent())
	assert.True(t, EventNodeDeleted.isDataEvent())
	assert.False(t, EventNodeChildrenChanged.isDataEvent())
	assert.False(t, EventNone.isDataEvent())
}

func TestIsTransient(t *testing.T) {
	testCases := []struct {
		err  error
		want bool
	}{
		{err: zk.ErrConnectionClosed, want: true},
		{err: zk.ErrSessionExpired, want: true},
		{err: zk.ErrNoServer, want: true},
		{err: zk.ErrClosing, want: true},
		{err: fmt.Errorf("get /a: %w", zk.ErrSessionExpired), want: true},
		{err: zk.ErrNoNode, want: false},
		{err: zk.ErrNodeExists, want: false},
		{err: zk.ErrAuthFailed, want: false},
		{err: ErrRetryTimeout, want: false},
		{err: nil, want: false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, IsTransient(tc.err), "%v", tc.err)
	}
}

func TestTranslateEvent(t *testing.T) {
	testCases := []struct {
		name  string
		event zk.Event
		want  Event
		ok    bool
	}{
		{
			name:  "has session",
			event: zk.Event{Type: zk.EventSession, State: zk.StateHasSession},
			want:  Event{Type: EventNone, State: StateSyncConnected},
			ok:    true,
		},
		{
			name:  "expired",
			event: zk.Event{Type: zk.EventSession, State: zk.StateExpired},
			want:  Event{Type: EventNone, State: StateExpired},
			ok:    true,
		},
		{
			name:  "connecting is dropped",
			event: zk.Event{Type: zk.EventSession, State: zk.StateConnecting},
		},
		{
			name:  "children changed",
			event: zk.Event{Type: zk.EventNodeChildrenChanged, State: zk.StateHasSession, Path: "/a"},
			want:  Event{Type: EventNodeChildrenChanged, State: StateSyncConnected, Path: "/a"},
			ok:    true,
		},
		{
			name:  "not watching is dropped",
			event: zk.Event{Type: zk.EventNotWatching, Path: "/a"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := translateEvent(tc.event)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
