package serversets

import (
	"encoding/json"
	"fmt"
	"path"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinker0/go.zkensemble/pkg/zkclient"
	"github.com/thinker0/go.zkensemble/pkg/zkclient/zktest"
)

const waitFor = 5 * time.Second

func newClient(t *testing.T, e *zktest.Ensemble) *zkclient.Client {
	t.Helper()
	opts := zkclient.DefaultOptions()
	opts.ConnectionString = "zk1:2181"
	opts.ConnectionSpanTimeout = waitFor
	opts.OperatingSpanTimeout = waitFor

	client, err := zkclient.New(opts, opts.ConnectionString, zkclient.WithDialer(e.Dialer()), zkclient.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func assertEndpoints(t *testing.T, watch *Watch, expected ...string) {
	t.Helper()
	if expected == nil {
		expected = []string{}
	}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(expected, watch.Endpoints())
	}, waitFor, 10*time.Millisecond, "expected endpoints %v, got %v", expected, watch.Endpoints())
}

func TestNew_ServiceWithSlash(t *testing.T) {
	e := zktest.New()
	client := newClient(t, e)
	assert.Panics(t, func() { New("www", "test", "go/test", client) })
}

func TestWatchSortEndpoints(t *testing.T) {
	e := zktest.New()
	set := New("www", "test", "gotest", newClient(t, e))
	assert.Equal(t, "zk1:2181", set.ConnectionString())

	watch, err := set.Watch()
	require.NoError(t, err)
	defer watch.Close()
	assert.Empty(t, watch.Endpoints())

	registrar := New("www", "test", "gotest", newClient(t, e))
	for _, port := range []int{1002, 1001, 1003} {
		ep, err := registrar.RegisterEndpoint("localhost", port)
		require.NoError(t, err)
		defer ep.Close()
	}

	assertEndpoints(t, watch, "localhost:1001", "localhost:1002", "localhost:1003")
	assert.Equal(t, []string{"member_0000000000", "member_0000000001", "member_0000000002"}, e.Children("/aurora/www/test/gotest"))
	assert.Positive(t, watch.EventCount())
	assert.False(t, watch.LastEvent().IsZero())
}

func TestWatchEndpointClose(t *testing.T) {
	e := zktest.New()
	set := New("www", "test", "gotest", newClient(t, e))
	watch, err := set.Watch()
	require.NoError(t, err)
	defer watch.Close()

	ep, err := set.RegisterEndpoint("localhost", 1001)
	require.NoError(t, err)
	assert.Equal(t, "/aurora/www/test/gotest/member_0000000000", ep.Key())
	assertEndpoints(t, watch, "localhost:1001")

	require.NoError(t, ep.Close())
	require.NoError(t, ep.Close())
	assertEndpoints(t, watch)
	assert.False(t, e.Exists(ep.Key()))
}

func TestWatchSkipsMembers(t *testing.T) {
	e := zktest.New()
	client := newClient(t, e)
	set := New("www", "test", "gotest", client)
	watch, err := set.Watch()
	require.NoError(t, err)
	defer watch.Close()

	dir := set.ZKFmt.Path()
	dead := set.ZKFmt.Create("localhost", 1001).(*FinagleRecord)
	dead.Status = StatusDead
	data, err := dead.Marshal()
	require.NoError(t, err)
	_, err = client.CreateEphemeralSequential(path.Join(dir, MemberPrefix), data)
	require.NoError(t, err)

	// not a member node
	require.NoError(t, client.CreateEphemeral(path.Join(dir, "lock"), nil))

	ep, err := set.RegisterEndpoint("localhost", 1002)
	require.NoError(t, err)
	defer ep.Close()

	assertEndpoints(t, watch, "localhost:1002")
}

func TestWatchIsClosed(t *testing.T) {
	e := zktest.New()
	set := New("www", "test", "gotest", newClient(t, e))
	watch, err := set.Watch()
	require.NoError(t, err)
	assert.False(t, watch.IsClosed())

	watch.Close()

	assert.True(t, watch.IsClosed(), "should say it's closed right after we close it")
}

func TestWatchMultipleClose(t *testing.T) {
	e := zktest.New()
	set := New("www", "test", "gotest", newClient(t, e))
	watch, err := set.Watch()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		watch.Close()
		watch.Close()
		watch.Close()
	})
}

func TestWatchTriggerEvent(t *testing.T) {
	e := zktest.New()
	set := New("www", "test", "gotest", newClient(t, e))
	watch, err := set.Watch()
	require.NoError(t, err)
	defer watch.Close()

	watch.triggerEvent()
	watch.triggerEvent()
	watch.triggerEvent()
	watch.triggerEvent()

	assert.Equal(t, 4, watch.EventCount())
	assert.Len(t, watch.Event(), 1)
}

func TestWatchAfterExpiredSessions(t *testing.T) {
	e := zktest.New()
	watcher := newClient(t, e)
	registrar := newClient(t, e)

	watch, err := New("www", "test", "gotest", watcher).Watch()
	require.NoError(t, err)
	defer watch.Close()

	set := New("www", "test", "gotest", registrar)
	ep, err := set.RegisterEndpoint("localhost", 1001)
	require.NoError(t, err)
	defer ep.Close()
	assertEndpoints(t, watch, "localhost:1001")

	// the member node is created again by the registering client
	expired := registrar.SessionID()
	e.Session(expired).Expire()
	assert.Eventually(t, func() bool {
		return registrar.SessionID() != expired && e.Exists(ep.Key())
	}, waitFor, 10*time.Millisecond)
	assertEndpoints(t, watch, "localhost:1001")

	// the watch is armed again on the new session of the watching client
	expired = watcher.SessionID()
	e.Session(expired).Expire()
	assert.Eventually(t, func() bool {
		return watcher.SessionID() != expired && watcher.State() == zkclient.StateSyncConnected
	}, waitFor, 10*time.Millisecond)

	other, err := set.RegisterEndpoint("localhost", 1002)
	require.NoError(t, err)
	defer other.Close()
	assertEndpoints(t, watch, "localhost:1001", "localhost:1002")
}

type testNode struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	Port    *int   `json:"port"`
	Enabled bool   `json:"enabled"`
	SSLPort *int   `json:"sslPort"`
}

type testFmt struct{}

func (testFmt) Unmarshal(data []byte) (ZKRecord, error) {
	n := &testNode{}
	err := json.Unmarshal(data, n)
	return n, err
}

func (testFmt) Create(host string, port int) ZKRecord {
	return &testNode{
		Address: host,
		Name:    "test",
		ID:      "id",
		Port:    nil,
		Enabled: true,
		SSLPort: &port,
	}
}

func (testFmt) Path() string   { return "/services/foobar" }
func (testFmt) Prefix() string { return "" }

func (n testNode) Endpoint() string         { return fmt.Sprintf("%s:%d", n.Address, *n.SSLPort) }
func (n testNode) Marshal() ([]byte, error) { return json.Marshal(n) }
func (n testNode) IsAlive() bool            { return n.Enabled }

func TestCustomizedZKFmt(t *testing.T) {
	e := zktest.New()
	set := NewP(newClient(t, e), testFmt{})
	watch, err := set.Watch()
	require.NoError(t, err)
	defer watch.Close()

	ep, err := set.RegisterEndpoint("localhost", 1002)
	require.NoError(t, err)
	defer ep.Close()

	assertEndpoints(t, watch, "localhost:1002")
	assert.Equal(t, "/services/foobar/0000000000", ep.Key())
}

func TestFinagleRecord(t *testing.T) {
	f := NewFinagleFmt("www", "test", "gotest")
	assert.Equal(t, "/aurora/www/test/gotest", f.Path())

	data, err := f.Create("10.0.0.1", 8080).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"serviceEndpoint":{"host":"10.0.0.1","port":8080},"additionalEndpoints":{},"shard":0,"status":"ALIVE"}`, string(data))

	r, err := f.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8080", r.Endpoint())
	assert.True(t, r.IsAlive())

	_, err = f.Unmarshal([]byte("not json"))
	assert.Error(t, err)
}
