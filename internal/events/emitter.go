package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"beast-crm/internal/logging"
)

// Emitter lets business logic ask for a real-time event without holding the
// registry. Delivery is best effort: Emit never reports failure to the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType string, data any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, eventType string, data any)

func (f EmitterFunc) Emit(ctx context.Context, eventType string, data any) {
	if f != nil {
		f(ctx, eventType, data)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, string, any) {}

// LoopbackEmitter posts events to a broadcast-trigger endpoint, normally this
// process's own. It only reaches clients connected to the instance that serves
// the request; RelayEmitter is the multi-instance replacement.
type LoopbackEmitter struct {
	url         string
	internalKey string
	client      *http.Client
	log         *slog.Logger
}

func NewLoopbackEmitter(url, internalKey string, timeout time.Duration, log *slog.Logger) *LoopbackEmitter {
	if log == nil {
		log = logging.Discard()
	}
	return &LoopbackEmitter{
		url:         url,
		internalKey: internalKey,
		client:      &http.Client{Timeout: timeout},
		log:         log,
	}
}

func (e *LoopbackEmitter) Emit(ctx context.Context, eventType string, data any) {
	if err := e.post(ctx, eventType, data); err != nil {
		e.log.WarnContext(ctx, "realtime emit failed", logging.EventType(eventType), logging.Err(err))
		return
	}
	e.log.DebugContext(ctx, "realtime event emitted", logging.EventType(eventType))
}

func (e *LoopbackEmitter) post(ctx context.Context, eventType string, data any) error {
	body, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	// The business request may finish before the loopback call does.
	ctx = context.WithoutCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.internalKey != "" {
		req.Header.Set(InternalKeyHeader, e.internalKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("trigger endpoint answered %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out struct {
		Success           bool `json:"success"`
		ActiveConnections int  `json:"activeConnections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode trigger response: %w", err)
	}
	if !out.Success {
		return fmt.Errorf("trigger endpoint reported failure")
	}
	if out.ActiveConnections == 0 {
		e.log.WarnContext(ctx, "realtime event has no active subscribers", logging.EventType(eventType))
	}
	return nil
}

// RelayEmitter publishes envelopes straight onto the shared bus, so every
// instance delivers them to its own connections.
type RelayEmitter struct {
	hub *Hub
	bus Publisher
	log *slog.Logger
}

func NewRelayEmitter(hub *Hub, bus Publisher, log *slog.Logger) *RelayEmitter {
	if log == nil {
		log = logging.Discard()
	}
	return &RelayEmitter{hub: hub, bus: bus, log: log}
}

func (e *RelayEmitter) Emit(ctx context.Context, eventType string, data any) {
	env, err := e.hub.NewEnvelope(eventType, data)
	if err != nil {
		e.log.WarnContext(ctx, "realtime emit failed", logging.EventType(eventType), logging.Err(err))
		return
	}
	if _, err := e.bus.Publish(context.WithoutCancel(ctx), env); err != nil {
		e.log.WarnContext(ctx, "realtime emit failed", logging.EventType(eventType), logging.Err(err))
	}
}
