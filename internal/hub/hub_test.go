package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, h *Hub, sessionID string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(h.NewConnection(ws, sessionID, 7))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHubDeliversToSessionSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(nil)
	go h.Run(ctx)

	srv := newFeedServer(t, h, "gs_1")
	ws := dial(t, srv)

	require.Eventually(t, func() bool { return h.HasSubscribers("gs_1") }, time.Second, 10*time.Millisecond)

	h.Publish("gs_other", map[string]string{"type": "ignored"})
	h.Publish("gs_1", map[string]string{"type": "round_result"})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "round_result", msg["type"])
}

func TestHubUnregistersOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub(nil)
	go h.Run(ctx)

	srv := newFeedServer(t, h, "gs_1")
	ws := dial(t, srv)
	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	_ = ws.Close()
	require.Eventually(t, func() bool { return h.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, h.HasSubscribers("gs_1"))
}

func TestPublishNeverBlocks(t *testing.T) {
	h := NewHub(nil)
	// Run is not started, so the queue fills and further messages are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Publish("gs_1", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
}

func TestUnregisterTwice(t *testing.T) {
	h := NewHub(nil)
	conn := &Connection{ID: "c1", SessionID: "gs_1", Send: make(chan []byte, 1)}
	h.Register(conn)
	h.Unregister(conn)
	h.Unregister(conn)
	assert.Equal(t, 0, h.ConnectionCount())
}
