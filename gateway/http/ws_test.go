package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csakilan/FoundryBackend/hub"
)

type fakeHub struct {
	mu           sync.Mutex
	subs         map[string]hub.Subscriber
	subscribed   chan string
	unsubscribed chan string
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		subs:         make(map[string]hub.Subscriber),
		subscribed:   make(chan string, 4),
		unsubscribed: make(chan string, 4),
	}
}

func (h *fakeHub) Subscribe(stackName string, sub hub.Subscriber) {
	h.mu.Lock()
	h.subs[stackName] = sub
	h.mu.Unlock()
	h.subscribed <- stackName
}

func (h *fakeHub) Unsubscribe(stackName, subscriberID string) {
	h.mu.Lock()
	delete(h.subs, stackName)
	h.mu.Unlock()
	h.unsubscribed <- subscriberID
}

func (h *fakeHub) subscriber(stackName string) hub.Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subs[stackName]
}

func awaitString(t *testing.T, ch <-chan string, what string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return ""
	}
}

func dialTrack(t *testing.T, ts *httptest.Server, stackName string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/canvas/deploy/track/" + stackName
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestTrackStreamsEnvelopes(t *testing.T) {
	fh := newFakeHub()
	srv, err := New(Config{Addr: "127.0.0.1:0"}, &stubDeployer{}, fh)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialTrack(t, ts, "foundry-stack-ab12cd34")
	defer conn.Close()

	stack := awaitString(t, fh.subscribed, "subscription")
	assert.Equal(t, "foundry-stack-ab12cd34", stack)

	sub := fh.subscriber("foundry-stack-ab12cd34")
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID())

	require.NoError(t, sub.Send(hub.Envelope{
		Type:      "status",
		Timestamp: "2026-08-23T10:00:00Z",
		Message:   "stack create started",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)

	var env hub.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "status", env.Type)
	assert.Equal(t, "stack create started", env.Message)

	require.NoError(t, sub.Send(hub.Envelope{
		Type:      "complete",
		Timestamp: "2026-08-23T10:00:42Z",
		Duration:  "42s",
	}))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "complete", env.Type)
	assert.Equal(t, "42s", env.Duration)
}

func TestTrackUnsubscribesOnClose(t *testing.T) {
	fh := newFakeHub()
	srv, err := New(Config{Addr: "127.0.0.1:0"}, &stubDeployer{}, fh)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialTrack(t, ts, "foundry-stack-ab12cd34")
	awaitString(t, fh.subscribed, "subscription")

	sub := fh.subscriber("foundry-stack-ab12cd34")
	require.NotNil(t, sub)

	require.NoError(t, conn.Close())

	id := awaitString(t, fh.unsubscribed, "unsubscribe")
	assert.Equal(t, sub.ID(), id)
}

func TestTrackConcurrentSends(t *testing.T) {
	fh := newFakeHub()
	srv, err := New(Config{Addr: "127.0.0.1:0"}, &stubDeployer{}, fh)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialTrack(t, ts, "foundry-stack-ab12cd34")
	defer conn.Close()
	awaitString(t, fh.subscribed, "subscription")

	sub := fh.subscriber("foundry-stack-ab12cd34")
	require.NotNil(t, sub)

	// The per-connection write lock must serialize competing senders.
	const senders = 8
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sub.Send(hub.Envelope{
				Type:      "resource",
				Timestamp: "2026-08-23T10:00:00Z",
			}))
		}()
	}
	wg.Wait()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < senders; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env hub.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.Equal(t, "resource", env.Type)
	}
}

func TestTrackRejectsPlainGET(t *testing.T) {
	fh := newFakeHub()
	srv, err := New(Config{Addr: "127.0.0.1:0"}, &stubDeployer{}, fh)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/canvas/deploy/track/foundry-stack-ab12cd34")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	select {
	case <-fh.subscribed:
		t.Fatal("plain GET must not subscribe")
	default:
	}
}
