package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const writeWait = 10 * time.Second

// sseConn queues payloads for the handler goroutine that owns the response
// writer. The queue channel is never closed; done signals the end instead so a
// late Send can never panic.
type sseConn struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSSEConn(buffer int) *sseConn {
	return &sseConn{
		id:   uuid.NewString(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *sseConn) ID() string { return c.id }

func (c *sseConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSlowConsumer
	}
}

func (c *sseConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// sseWriter serialises frames onto one response.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func (s sseWriter) write(frame []byte) error {
	// Not every writer supports deadlines (httptest.ResponseRecorder doesn't).
	_ = s.rc.SetWriteDeadline(time.Now().Add(writeWait))
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}

func setStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Cache-Control")
}

// serveSSE runs one stream from Opening to Closed. It returns when the client
// goes away, a write fails, or the hub closes the connection.
func (h *Handler) serveSSE(ctx context.Context, w http.ResponseWriter) error {
	out := sseWriter{w: w, rc: http.NewResponseController(w)}

	setStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	conn := newSSEConn(h.opts.SendBuffer)
	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		_ = conn.Close()
	}()

	hello, err := json.Marshal(NewHandshake())
	if err != nil {
		return err
	}
	if err := out.write(EncodeFrame(hello)); err != nil {
		return err
	}

	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.done:
			return nil
		case payload := <-conn.send:
			if err := out.write(EncodeFrame(payload)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := out.write(heartbeatFrame); err != nil {
				return err
			}
		}
	}
}
