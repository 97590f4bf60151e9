package events

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

func TestServeWS_HandshakeThenEvents(t *testing.T) {
	hub := NewHub(nil)
	h := NewHandler(hub, nil, HandlerOptions{})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"connected","message":"Conectado al servidor de eventos"}`, string(first))

	require.Eventually(t, func() bool { return hub.Size() == 1 }, time.Second, 5*time.Millisecond)

	n, err := hub.Broadcast(context.Background(), TypeChatNewMessage, ChatMessageEvent{ChatID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeChatNewMessage, env.Type)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return hub.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_HubCloseSendsCloseFrame(t *testing.T) {
	hub := NewHub(nil)
	h := NewHandler(hub, nil, HandlerOptions{})
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Size() == 1 }, time.Second, 5*time.Millisecond)

	hub.CloseAll()

	_, _, err = ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
