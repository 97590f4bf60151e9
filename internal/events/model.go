package events

import (
	"encoding/json"
	"errors"
	"time"
)

// ---------------------------------------------
// Event type registry
// ---------------------------------------------

const (
	TypeConnected       = "connected"
	TypeChatNewMessage  = "chat:new_message"
	TypeNotificationNew = "notification:new"
)

const HandshakeMessage = "Conectado al servidor de eventos"

// TimestampLayout is ISO-8601 in UTC with millisecond precision, the same shape
// browsers produce with Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrConnectionClosed = errors.New("events: connection closed")
	ErrSlowConsumer     = errors.New("events: send buffer full")
)

// Envelope is the tagged record written to every stream. Data is kept raw so a
// relayed envelope is forwarded byte-for-byte.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Handshake is the first message of every stream; it carries no timestamp.
type Handshake struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewHandshake() Handshake {
	return Handshake{Type: TypeConnected, Message: HandshakeMessage}
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// EncodeFrame wraps a JSON payload in SSE data framing.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')
	return frame
}

// heartbeatFrame is an SSE comment; EventSource ignores it.
var heartbeatFrame = []byte(": heartbeat\n\n")

// Connection is one client's open output stream. Send must not block: it either
// queues the payload or reports why it could not.
type Connection interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// ---------------------------------------------
// Payloads
// ---------------------------------------------

type ChatMessage struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	CreadoEn    time.Time `json:"creado_en"`
	RemitenteID *string   `json:"remitente_id,omitempty"`
	ContactoID  string    `json:"contacto_id"`
}

type ChatContact struct {
	ID          string  `json:"id"`
	Nombre      string  `json:"nombre"`
	Telefono    *string `json:"telefono,omitempty"`
	WhatsappJID *string `json:"whatsapp_jid,omitempty"`
}

// ChatMessageEvent is the payload of chat:new_message.
type ChatMessageEvent struct {
	ChatID  string      `json:"chat_id"`
	Message ChatMessage `json:"message"`
	Contact ChatContact `json:"contact"`
}

type NotificationPayload struct {
	ID      string          `json:"id"`
	Titulo  string          `json:"titulo"`
	Mensaje string          `json:"mensaje"`
	Tipo    string          `json:"tipo"`
	Fecha   time.Time       `json:"fecha"`
	Leida   bool            `json:"leida"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NotificationEvent is the payload of notification:new.
type NotificationEvent struct {
	Notification NotificationPayload `json:"notification"`
	UserID       string              `json:"user_id"`
}
