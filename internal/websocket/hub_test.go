package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/smbt-dev/inspectgo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func fakeClient(hub *Hub, id string) *Client {
	return &Client{hub: hub, send: make(chan []byte, 8), requestIDs: make(map[uint]bool), ID: id}
}

func receive(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var out map[string]any
		require.NoError(t, json.Unmarshal(msg, &out))
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHubFanOutToSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, cancel := startHub(t)
	defer func() { cancel(); <-hub.done }()

	a, b := fakeClient(hub, "a"), fakeClient(hub, "b")
	require.True(t, send(hub, hub.register, a))
	require.True(t, send(hub, hub.register, b))
	require.True(t, send(hub, hub.subscribe, subscription{client: a, requestID: 42}))
	require.True(t, send(hub, hub.subscribe, subscription{client: b, requestID: 7}))

	assert.Equal(t, TypeAck, receive(t, a)["type"])
	assert.Equal(t, TypeAck, receive(t, b)["type"])

	inspector := uint(9)
	hub.Publish(NewStatusEvent(&models.Request{ID: 42, Status: models.StatusAssigned, ExterminatorID: &inspector}))

	ev := receive(t, a)
	assert.Equal(t, TypeRequestStatus, ev["type"])
	assert.EqualValues(t, 42, ev["requestId"])
	assert.Equal(t, "assigned", ev["status"])
	assert.EqualValues(t, 9, ev["exterminatorId"])

	hub.Publish(StatusEvent{RequestID: 7, Status: models.StatusCancelled})
	ev = receive(t, b)
	assert.Equal(t, TypeRequestStatus, ev["type"])
	assert.Empty(t, a.send)
}

func TestHubUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, cancel := startHub(t)
	defer func() { cancel(); <-hub.done }()

	a := fakeClient(hub, "a")
	send(hub, hub.register, a)
	send(hub, hub.subscribe, subscription{client: a, requestID: 42})
	receive(t, a)
	send(hub, hub.subscribe, subscription{client: a, requestID: 42, remove: true})
	receive(t, a)

	hub.Publish(StatusEvent{RequestID: 42, Status: models.StatusCompleted})
	send(hub, hub.subscribe, subscription{client: a, requestID: 1})
	assert.EqualValues(t, 1, receive(t, a)["requestId"])
}

func TestHubStopClosesClients(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, cancel := startHub(t)

	a := fakeClient(hub, "a")
	send(hub, hub.register, a)
	cancel()
	<-hub.done

	_, ok := <-a.send
	assert.False(t, ok)
	assert.False(t, send(hub, hub.register, fakeClient(hub, "late")))
	hub.Publish(StatusEvent{RequestID: 1})
}

func TestHubDropsSlowClient(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, cancel := startHub(t)
	defer func() { cancel(); <-hub.done }()

	slow := &Client{hub: hub, send: make(chan []byte, 1), requestIDs: make(map[uint]bool), ID: "slow"}
	send(hub, hub.register, slow)
	send(hub, hub.subscribe, subscription{client: slow, requestID: 5})
	hub.Publish(StatusEvent{RequestID: 5, Status: models.StatusInProgress})

	<-slow.send
	_, ok := <-slow.send
	assert.False(t, ok, "slow client should be disconnected")
}

func TestServeWs(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, cancel := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()
	defer func() { cancel(); <-hub.done }()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypeSubscribe, "requestId": 42}))

	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeAck, got["type"])

	hub.Publish(StatusEvent{RequestID: 42, Status: models.StatusInProgress})
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, TypeRequestStatus, got["type"])
	assert.Equal(t, "in_progress", got["status"])
	assert.NotContains(t, got, "exterminatorId")
}
