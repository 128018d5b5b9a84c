package serversets

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
)

const (
	// SOH control character
	SOH = "\x01"

	// sohRetries bounds the re-reads of a member which returned SOH.
	sohRetries = 3
)

// A Watch keeps tabs on a server set in Zookeeper and notifies
// via the Event() channel when the list of servers changes.
// The list of servers is updated automatically and will be up to date when the Event is sent.
type Watch struct {
	serverSet *ServerSet

	// guards lastEvent and eventCount
	eventLock  sync.Mutex
	lastEvent  time.Time
	eventCount int
	event      chan struct{}

	changed chan struct{}
	sub     *zkclient.Subscription

	done      chan struct{} // used for closing
	closeOnce sync.Once
	wg        sync.WaitGroup

	// lock for read/writing the records slice
	lock    sync.RWMutex
	records []ZKRecord
}

// Watch starts watching changes in the service members znode. The client
// keeps the watch alive across reconnects and expired sessions.
func (ss *ServerSet) Watch() (*Watch, error) {
	watch := &Watch{
		serverSet: ss,
		done:      make(chan struct{}),
		event:     make(chan struct{}, 1),
		changed:   make(chan struct{}, 1),
	}

	// Ensure path exists before watching
	if err := ss.createFullPath(); err != nil {
		return nil, err
	}

	sub, err := ss.client.SubscribeChildrenChange(ss.directoryPath(), func(zkclient.ChildrenChange) {
		select {
		case watch.changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to watch %s: %w", ss.directoryPath(), err)
	}
	watch.sub = sub

	records, err := watch.load()
	if err != nil {
		ss.client.Unsubscribe(sub)
		return nil, err
	}
	watch.setRecords(records)

	watch.wg.Add(1)
	go func() {
		defer watch.wg.Done()
		for {
			select {
			case <-watch.changed:
				records, err := watch.load()
				if err != nil {
					ss.logger.Warn().Err(err).Msg("unable to update endpoint list after znode event")
					// the members are read again on the next children event or reconnect
					continue
				}
				watch.setRecords(records)
				watch.triggerEvent()
			case <-watch.done:
				return
			}
		}
	}()

	return watch, nil
}

// Endpoints returns a slice of the current list of servers/endpoints associated with this watch.
func (w *Watch) Endpoints() []string {
	w.lock.RLock()
	defer w.lock.RUnlock()
	endpoints := make([]string, 0, len(w.records))
	for _, r := range w.records {
		endpoints = append(endpoints, r.Endpoint())
	}

	sort.Strings(endpoints)
	return endpoints
}

// Event returns the event channel. This channel will get an object
// whenever something changes with the list of endpoints.
func (w *Watch) Event() <-chan struct{} {
	return w.event
}

// EventCount returns the number of endpoint list updates.
func (w *Watch) EventCount() int {
	w.eventLock.Lock()
	defer w.eventLock.Unlock()
	return w.eventCount
}

// LastEvent returns the time of the last endpoint list update.
func (w *Watch) LastEvent() time.Time {
	w.eventLock.Lock()
	defer w.eventLock.Unlock()
	return w.lastEvent
}

// Close stops the watch and closes the event channel. It is safe to call
// more than once.
func (w *Watch) Close() {
	w.closeOnce.Do(func() {
		w.serverSet.client.Unsubscribe(w.sub)
		close(w.done)
		w.wg.Wait()

		// the goroutine watching for events must be terminated
		// before we close this channel, since it might still be sending events.
		close(w.event)
	})
}

// IsClosed returns if this watch has been closed. This is a way for libraries wrapping
// this package to know if their underlying watch is closed and should stop looking for events.
func (w *Watch) IsClosed() bool {
	select {
	case <-w.done:
		return true
	default:
	}

	return false
}

// load reads the member list and arms the children watch in the same call.
func (w *Watch) load() ([]ZKRecord, error) {
	keys, err := w.serverSet.client.GetChildren(w.serverSet.directoryPath(), true)
	if err != nil {
		return nil, fmt.Errorf("unable to list members of %s: %w", w.serverSet.directoryPath(), err)
	}
	return w.updateRecords(keys)
}

func (w *Watch) setRecords(records []ZKRecord) {
	w.lock.Lock()
	w.records = records
	w.lock.Unlock()
}

func (w *Watch) updateRecords(keys []string) ([]ZKRecord, error) {
	records := make([]ZKRecord, 0, len(keys))

	for _, k := range keys {
		if !strings.HasPrefix(k, w.serverSet.ZKFmt.Prefix()) {
			continue
		}

		r, err := w.getRecord(k)
		if err != nil {
			return nil, err
		}

		if r == nil {
			// znode not found
			continue
		}

		if r.IsAlive() {
			records = append(records, r)
		}
	}

	return records, nil
}

func (w *Watch) getRecord(key string) (ZKRecord, error) {
	member := path.Join(w.serverSet.directoryPath(), key)

	for attempt := 0; ; attempt++ {
		data, _, err := w.serverSet.client.GetData(member, false)
		if errors.Is(err, zkclient.ErrNoNode) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		// Found this SOH check while browsing the docker/libkv source
		// https://github.com/docker/libkv/commit/035e8143a336ceb29760c07278ef930f49767377
		if string(data) == SOH && attempt < sohRetries {
			continue
		}

		r, err := w.serverSet.ZKFmt.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("unable to decode member %s: %w", member, err)
		}
		return r, nil
	}
}

// triggerEvent will queue up something in the Event channel if there isn't already something there.
func (w *Watch) triggerEvent() {
	w.eventLock.Lock()
	w.eventCount++
	w.lastEvent = time.Now()
	w.eventLock.Unlock()

	select {
	case w.event <- struct{}{}:
	default:
	}
}
