package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *PushHub, userID string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPushHub_DeliversToUserSessions(t *testing.T) {
	hub := NewPushHub()
	defer hub.Close()

	first := dialHub(t, hub, "u1")
	second := dialHub(t, hub, "u1")
	other := dialHub(t, hub, "u2")
	require.Eventually(t, func() bool {
		return hub.Sessions("u1") == 2 && hub.Sessions("u2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	n, err := hub.Push(context.Background(), "u1", PushPayload{Type: EventLogin, Title: "New sign-in"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got PushPayload
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, "New sign-in", got.Title)
		assert.Equal(t, EventLogin, got.Type)
	}

	// u2 got nothing
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err)
}

func TestPushHub_SessionRemovedOnDisconnect(t *testing.T) {
	hub := NewPushHub()
	defer hub.Close()

	conn := dialHub(t, hub, "u1")
	require.Eventually(t, func() bool { return hub.Sessions("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Sessions("u1") == 0 }, 2*time.Second, 10*time.Millisecond)

	n, err := hub.Push(context.Background(), "u1", PushPayload{Title: "nobody home"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPushHub_Close(t *testing.T) {
	hub := NewPushHub()
	conn := dialHub(t, hub, "u1")
	require.Eventually(t, func() bool { return hub.Sessions("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Sessions("u1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	_, err = hub.Push(context.Background(), "u1", PushPayload{})
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestDispatcher_PushToLiveSession(t *testing.T) {
	hub := NewPushHub()
	defer hub.Close()
	conn := dialHub(t, hub, "u1")
	require.Eventually(t, func() bool { return hub.Sessions("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	cfg := baseConfig()
	cfg.EmailEnabled = false
	cfg.SMSEnabled = false
	cfg.PushEnabled = true
	f := newDispatcherFixture(cfg, WithPushSender(hub))

	result, err := f.dispatcher.Send(context.Background(), loginEvent())
	require.NoError(t, err)
	require.Len(t, result.Channels, 1)
	assert.True(t, result.Channels[0].Success)
	assert.Equal(t, "delivered to 1 sessions", result.Channels[0].ProviderMessage)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got PushPayload
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, result.RecordID, got.ID)
}
