package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func dialHub(t *testing.T, hub *Hub) *gorillaws.Conn {
	t.Helper()
	upgrader := DefaultUpgrader()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		Serve(hub, conn, nil)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func TestNewSecureUpgrader_Origins(t *testing.T) {
	upgrader := NewSecureUpgrader([]string{"http://localhost:3000", " http://example.com ", ""}, nil)

	tests := []struct {
		origin   string
		expected bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://example.com", true},
		{"http://EXAMPLE.com", false},
		{"http://example.com/path", false},
		{"http://malicious.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, upgrader.CheckOrigin(req))
		})
	}
}

func TestNewSecureUpgrader_DefaultsToLocalhost(t *testing.T) {
	upgrader := NewSecureUpgrader(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", DefaultAllowedOrigin)
	assert.True(t, upgrader.CheckOrigin(req))

	req.Header.Set("Origin", "http://other.com")
	assert.False(t, upgrader.CheckOrigin(req))
	assert.Equal(t, 1024, upgrader.ReadBufferSize)
	assert.Equal(t, 1024, upgrader.WriteBufferSize)
}

func TestDefaultUpgrader_AllowsAll(t *testing.T) {
	upgrader := DefaultUpgrader()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "http://anything.com")
	assert.True(t, upgrader.CheckOrigin(req))
}

func TestHub_BroadcastsRunEvents(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)

	run := &models.ReportRun{ID: "run-1", Trigger: models.TriggerManual, Status: models.RunStatusRunning, StartedAt: time.Now().UTC()}
	hub.RunStarted(run)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, MessageTypeRunStarted, msg.Type)
	require.NotNil(t, msg.Run)
	assert.Equal(t, "run-1", msg.Run.ID)
	assert.Equal(t, models.RunStatusRunning, msg.Run.Status)
}

func TestHub_SubscriptionFiltersEvents(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: MessageTypeSubscribe, Event: MessageTypeRunFinished}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ack WSMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, MessageTypeSubscribe, ack.Type)
	assert.Equal(t, MessageTypeRunFinished, ack.Event)

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for _, filters := range hub.clients {
			return filters[MessageTypeRunFinished]
		}
		return false
	}, time.Second, 5*time.Millisecond)

	run := &models.ReportRun{ID: "run-2", Status: models.RunStatusSucceeded}
	hub.RunStarted(run)
	hub.RunFinished(run)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeRunFinished, msg.Type)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := startHub(t)
	conn := dialHub(t, hub)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := startHub(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.RunFinished(&models.ReportRun{ID: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked")
	}
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	conn := dialHub(t, hub)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorillaws.IsCloseError(err, gorillaws.CloseGoingAway), "got %v", err)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_ClientMessagesAfterShutdownDoNotPanic(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := NewClient(hub, nil, nil)
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-hub.done
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	messages := []string{
		`{"type":"last_run"}`,
		`{"type":"subscribe","event":"run_finished"}`,
		`{"type":"unsubscribe","event":"run_started"}`,
		`{not json`,
	}
	for _, m := range messages {
		assert.NotPanics(t, func() { client.handleMessage([]byte(m)) }, m)
	}
	hub.Unregister(client)

	assert.Equal(t, MessageTypeLastRun, readReply(t, client).Type)
}

func TestWSMessage_JSON(t *testing.T) {
	data, err := json.Marshal(WSMessage{Type: MessageTypeError, Error: "bad"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","error":"bad"}`, string(data))
}
