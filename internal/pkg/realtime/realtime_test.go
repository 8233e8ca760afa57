package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)
	return hub
}

func TestHub_DeliversOnlyToRecipient(t *testing.T) {
	hub := startHub(t)
	alice := &Client{hub: hub, send: make(chan []byte, 4), userID: 1}
	bob := &Client{hub: hub, send: make(chan []byte, 4), userID: 2}
	require.True(t, hub.attach(alice))
	require.True(t, hub.attach(bob))
	require.Eventually(t, func() bool { return hub.ClientsCount(1) == 1 && hub.ClientsCount(2) == 1 }, time.Second, 5*time.Millisecond)

	bus := NewLocalBus()
	require.NoError(t, Attach(context.Background(), bus, hub))
	require.NoError(t, NewNotifier(bus).Publish(context.Background(), &models.Notification{ID: 10, UserID: 1, Title: "Meeting scheduled"}))

	select {
	case raw := <-alice.send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, EventNotification, ev.Type)
		assert.Equal(t, int64(1), ev.UserID)
		assert.Contains(t, string(ev.Payload), "Meeting scheduled")
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Len(t, bob.send, 0)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	slow := &Client{hub: hub, send: make(chan []byte), userID: 3}
	require.True(t, hub.attach(slow))
	require.Eventually(t, func() bool { return hub.ClientsCount(3) == 1 }, time.Second, 5*time.Millisecond)

	hub.Deliver(Event{Type: EventNotification, UserID: 3})
	require.Eventually(t, func() bool { return hub.ClientsCount(3) == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-slow.send
	assert.False(t, open)
}

func TestHub_StoppedHubDoesNotBlockClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zerolog.Nop())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := &Client{hub: hub, send: make(chan []byte, 1), userID: 4}
	require.True(t, hub.attach(c))
	cancel()
	<-stopped

	_, open := <-c.send
	assert.False(t, open, "shutdown closes open clients")

	returned := make(chan bool, 1)
	go func() {
		hub.detach(c)
		returned <- hub.attach(&Client{hub: hub, send: make(chan []byte, 1), userID: 5})
	}()
	select {
	case attached := <-returned:
		assert.False(t, attached)
	case <-time.After(time.Second):
		t.Fatal("client blocked on a stopped hub")
	}
}

func TestUpgraderOrigins(t *testing.T) {
	up := newUpgrader([]string{"https://advising.example.edu"})
	req := httptestRequest("https://advising.example.edu")
	assert.True(t, up.CheckOrigin(req))
	assert.False(t, up.CheckOrigin(httptestRequest("https://evil.example.com")))

	open := newUpgrader(nil)
	assert.True(t, open.CheckOrigin(httptestRequest("https://anything")))
}

func httptestRequest(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/notifications", nil)
	req.Header.Set("Origin", origin)
	return req
}
