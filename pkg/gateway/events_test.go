package gateway

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *EventHub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestEventHub_PublishReachesClient(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	conn := dialHub(t, hub)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Publish("catalog_reloaded", map[string]interface{}{"count": 7})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "catalog_reloaded", ev.Type)
	assert.Equal(t, float64(7), ev.Data["count"])
	assert.False(t, ev.Timestamp.IsZero())
}

func TestEventHub_PublishWithoutClients(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	hub.Publish("execution_started", nil)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestEventHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewEventHub()
	conn := dialHub(t, hub)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
