package events

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"beast-crm/internal/logging"
	"beast-crm/internal/respond"
)

// InternalKeyHeader authenticates calls to the trigger endpoint when an internal
// key is configured.
const InternalKeyHeader = "X-Internal-Key"

// Publisher hands an envelope to a bus shared by every instance.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) (int64, error)
}

type HandlerOptions struct {
	SendBuffer        int
	HeartbeatInterval time.Duration
	InternalKey       string
}

func (o HandlerOptions) withDefaults() HandlerOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 25 * time.Second
	}
	return o
}

type Handler struct {
	hub  *Hub
	bus  Publisher
	opts HandlerOptions
}

// NewHandler wires the stream and trigger endpoints. bus may be nil, in which
// case triggers are broadcast to this process only.
func NewHandler(hub *Hub, bus Publisher, opts HandlerOptions) *Handler {
	return &Handler{
		hub:  hub,
		bus:  bus,
		opts: opts.withDefaults(),
	}
}

// Stream handles GET /api/events.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	log.Info("stream opened", logging.Transport("sse"), slog.Int("active", h.hub.Size()+1))

	if err := h.serveSSE(r.Context(), w); err != nil {
		log.Debug("stream write failed", logging.Err(err))
	}

	log.Info("stream closed", logging.Transport("sse"), slog.Int("active", h.hub.Size()))
}

type triggerRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// data must be a JSON object; scalars, arrays and null are rejected.
func (t triggerRequest) valid() bool {
	data := bytes.TrimLeft(t.Data, " \t\r\n")
	return t.Type != "" && len(data) > 0 && data[0] == '{'
}

type triggerResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	ActiveConnections int    `json:"activeConnections"`
}

// Trigger handles POST /api/events.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if h.opts.InternalKey != "" {
		got := r.Header.Get(InternalKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.opts.InternalKey)) != 1 {
			respond.Error(w, http.StatusUnauthorized, "No autorizado")
			return
		}
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("decode broadcast request", logging.Err(err))
		respond.Internal(w, "Error interno del servidor", err)
		return
	}
	if !req.valid() {
		respond.Error(w, http.StatusBadRequest, "Los campos type y data son requeridos")
		return
	}

	if h.bus != nil {
		env, err := h.hub.NewEnvelope(req.Type, req.Data)
		if err != nil {
			respond.Internal(w, "Error interno del servidor", err)
			return
		}
		receivers, err := h.bus.Publish(r.Context(), env)
		if err != nil {
			log.Error("publish event", logging.EventType(req.Type), logging.Err(err))
			respond.Internal(w, "Error interno del servidor", err)
			return
		}
		if receivers == 0 {
			log.Warn("no instances subscribed to the event bus", logging.EventType(req.Type))
		}
	} else {
		if _, err := h.hub.Broadcast(r.Context(), req.Type, req.Data); err != nil {
			respond.Internal(w, "Error interno del servidor", err)
			return
		}
	}

	respond.JSON(w, http.StatusOK, triggerResponse{
		Success:           true,
		Message:           fmt.Sprintf("Evento %s enviado", req.Type),
		ActiveConnections: h.hub.Size(),
	})
}

// Status handles GET /api/events/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	mode := "local"
	if h.bus != nil {
		mode = "bus"
	}
	respond.JSON(w, http.StatusOK, respond.Body{
		"success":           true,
		"activeConnections": h.hub.Size(),
		"mode":              mode,
	})
}
