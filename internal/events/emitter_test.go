package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackEmitter_DeliversThroughTrigger(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn("browser")
	hub.Register(conn)
	h := NewHandler(hub, nil, HandlerOptions{InternalKey: "secret"})

	srv := httptest.NewServer(http.HandlerFunc(h.Trigger))
	defer srv.Close()

	em := NewLoopbackEmitter(srv.URL, "secret", time.Second, nil)
	em.Emit(context.Background(), TypeChatNewMessage, ChatMessageEvent{
		ChatID:  "c1",
		Message: ChatMessage{ID: "m1", Content: "hola", ContactoID: "k1"},
		Contact: ChatContact{ID: "k1", Nombre: "Ana"},
	})

	got := conn.received()
	require.Len(t, got, 1)
	env := decodeEnvelope(t, got[0])
	assert.JSONEq(t, `"chat:new_message"`, string(env["type"]))

	var payload ChatMessageEvent
	require.NoError(t, json.Unmarshal(env["data"], &payload))
	assert.Equal(t, "c1", payload.ChatID)
	assert.Equal(t, "Ana", payload.Contact.Nombre)
	assert.Nil(t, payload.Message.RemitenteID)
}

func TestLoopbackEmitter_SwallowsFailures(t *testing.T) {
	var hits atomic.Int32
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "server error", handler: func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{name: "not json", handler: func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte("<html>"))
		}},
		{name: "reported failure", handler: func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte(`{"success":false,"error":"nope"}`))
		}},
		{name: "too slow", handler: func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			time.Sleep(200 * time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			var logs bytes.Buffer
			log := slog.New(slog.NewTextHandler(&logs, nil))
			em := NewLoopbackEmitter(srv.URL, "", 50*time.Millisecond, log)

			assert.NotPanics(t, func() {
				em.Emit(context.Background(), TypeNotificationNew, map[string]string{"user_id": "u1"})
			})
			assert.Contains(t, logs.String(), "realtime emit failed")
		})
	}
	assert.EqualValues(t, len(tests), hits.Load())
}

func TestLoopbackEmitter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	em := NewLoopbackEmitter(url, "", 100*time.Millisecond, nil)
	assert.NotPanics(t, func() {
		em.Emit(context.Background(), TypeNotificationNew, map[string]string{"user_id": "u1"})
	})
}

func TestLoopbackEmitter_OutlivesCallerContext(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		_, _ = w.Write([]byte(`{"success":true,"activeConnections":1}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewLoopbackEmitter(srv.URL, "", time.Second, nil).Emit(ctx, "x", 1)

	select {
	case <-received:
	default:
		t.Fatal("expected the loopback call to be made despite the cancelled request context")
	}
}

func TestRelayEmitter(t *testing.T) {
	bus := &fakeBus{receivers: 1}
	em := NewRelayEmitter(fixedHub(t), bus, nil)

	em.Emit(context.Background(), TypeNotificationNew, NotificationEvent{UserID: "u7"})

	require.Len(t, bus.published, 1)
	assert.Equal(t, TypeNotificationNew, bus.published[0].Type)
	assert.Equal(t, "2024-05-01T12:30:00.250Z", bus.published[0].Timestamp)
	assert.JSONEq(t, `{"notification":{"id":"","titulo":"","mensaje":"","tipo":"","fecha":"0001-01-01T00:00:00Z","leida":false},"user_id":"u7"}`,
		string(bus.published[0].Data))
}

func TestRelayEmitter_SwallowsFailures(t *testing.T) {
	em := NewRelayEmitter(NewHub(nil), &fakeBus{err: errors.New("down")}, nil)
	assert.NotPanics(t, func() { em.Emit(context.Background(), "x", 1) })
	assert.NotPanics(t, func() { em.Emit(context.Background(), "x", make(chan int)) })
}

func TestEmitterFunc(t *testing.T) {
	var gotType string
	var em Emitter = EmitterFunc(func(_ context.Context, eventType string, _ any) { gotType = eventType })
	em.Emit(context.Background(), "a", nil)
	assert.Equal(t, "a", gotType)

	assert.NotPanics(t, func() { EmitterFunc(nil).Emit(context.Background(), "a", nil) })
	assert.NotPanics(t, func() { Nop{}.Emit(context.Background(), "a", nil) })
}
