package alertfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"AriaPull/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	h := NewHub(WithPingInterval(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return h, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubBroadcastsToEveryClient(t *testing.T) {
	h, srv, _ := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	e := models.AirborneEvent{ID: "e1", Category: "climbing/level", Track1ID: "T1", Track2ID: "T2"}
	require.NoError(t, h.Accept(context.Background(), e))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "alert", msg.Type)
		assert.Equal(t, "e1", msg.Event.ID)
		assert.Equal(t, "climbing/level", msg.Event.Category)
	}
	assert.Eventually(t, func() bool { return h.Broadcasts() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	h, srv, _ := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubAcceptWithoutClients(t *testing.T) {
	h, _, _ := startHub(t)
	assert.NoError(t, h.Accept(context.Background(), models.AirborneEvent{ID: "e1"}))
}

func TestHubAcceptAfterStop(t *testing.T) {
	h, srv, cancel := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-h.done

	assert.Equal(t, 0, h.Clients())
	assert.ErrorIs(t, h.Accept(context.Background(), models.AirborneEvent{ID: "late"}), ErrHubClosed)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
