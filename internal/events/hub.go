package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"beast-crm/internal/logging"
)

// Hub owns the connection registry of this process and fans envelopes out to it.
// It is constructed once in main and injected into the handlers that need it.
type Hub struct {
	registry *Registry
	log      *slog.Logger
	now      func() time.Time
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = logging.Discard()
	}
	return &Hub{
		registry: NewRegistry(),
		log:      log,
		now:      time.Now,
	}
}

func (h *Hub) Register(c Connection) {
	h.registry.Register(c)
	h.log.Debug("connection registered", logging.Conn(c.ID()), slog.Int("active", h.registry.Size()))
}

func (h *Hub) Unregister(c Connection) {
	if h.registry.Unregister(c) {
		h.log.Debug("connection unregistered", logging.Conn(c.ID()), slog.Int("active", h.registry.Size()))
	}
}

func (h *Hub) Size() int {
	return h.registry.Size()
}

// NewEnvelope stamps the envelope with the current instant.
func (h *Hub) NewEnvelope(eventType string, data any) (Envelope, error) {
	raw, ok := data.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
	}
	return Envelope{
		Type:      eventType,
		Data:      raw,
		Timestamp: FormatTimestamp(h.now()),
	}, nil
}

// Broadcast delivers one envelope to every registered connection and returns
// how many accepted it. Connections that fail are removed after the pass.
func (h *Hub) Broadcast(ctx context.Context, eventType string, data any) (int, error) {
	env, err := h.NewEnvelope(eventType, data)
	if err != nil {
		return 0, err
	}
	return h.Deliver(ctx, env), nil
}

// Deliver fans an already built envelope out. It is the entry point for
// envelopes relayed from other instances, which keep their original timestamp.
func (h *Hub) Deliver(ctx context.Context, env Envelope) int {
	payload, err := json.Marshal(env)
	if err != nil {
		h.log.ErrorContext(ctx, "encode envelope", logging.EventType(env.Type), logging.Err(err))
		return 0
	}

	conns := h.registry.Snapshot()
	if len(conns) == 0 {
		h.log.WarnContext(ctx, "no active subscribers", logging.EventType(env.Type))
		return 0
	}

	sent := 0
	var failed []Connection
	for _, c := range conns {
		if err := c.Send(payload); err != nil {
			h.log.DebugContext(ctx, "send failed", logging.Conn(c.ID()), logging.Err(err))
			failed = append(failed, c)
			continue
		}
		sent++
	}

	for _, c := range failed {
		h.registry.Unregister(c)
		_ = c.Close()
	}

	h.log.InfoContext(ctx, "event broadcast",
		logging.EventType(env.Type),
		slog.Int("delivered", sent),
		slog.Int("pruned", len(failed)),
	)
	return sent
}

// CloseAll ends every stream. Used on shutdown so long-lived handlers return.
func (h *Hub) CloseAll() {
	for _, c := range h.registry.Snapshot() {
		h.registry.Unregister(c)
		_ = c.Close()
	}
}
