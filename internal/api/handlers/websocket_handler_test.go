package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/websocket"
	"github.com/welldanyogia/webrana-mail-digest/tests/fixtures"
)

func TestWebSocketHandler_StreamsRunEvents(t *testing.T) {
	hub := websocket.NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	e := echo.New()
	handler := NewWebSocketHandler(hub, websocket.NewSecureUpgrader([]string{"http://localhost:3000"}, nil), logger.Discard())
	e.GET("/ws", handler.Serve)
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	run := fixtures.NewReportRunBuilder().BuildPtr()
	hub.RunFinished(run)

	var msg websocket.WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.MessageTypeRunFinished, msg.Type)
	require.NotNil(t, msg.Run)
	assert.Equal(t, run.ID, msg.Run.ID)
}

func TestWebSocketHandler_RejectsForeignOrigin(t *testing.T) {
	hub := websocket.NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	e := echo.New()
	handler := NewWebSocketHandler(hub, websocket.NewSecureUpgrader([]string{"http://localhost:3000"}, nil), logger.Discard())
	e.GET("/ws", handler.Serve)
	srv := httptest.NewServer(e)
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}
