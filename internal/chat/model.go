package chat

import (
	"errors"
	"time"
)

var (
	ErrChatNotFound = errors.New("chat: not found")
	ErrEmptyContent = errors.New("chat: content is required")
	ErrInvalidInput = errors.New("chat: nombre and telefono or whatsapp_jid are required")
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Contact is the customer on the other side of a chat.
type Contact struct {
	ID          string  `json:"id"`
	Nombre      string  `json:"nombre"`
	Telefono    *string `json:"telefono,omitempty"`
	WhatsappJID *string `json:"whatsapp_jid,omitempty"`
}

type Chat struct {
	ID       string    `json:"id"`
	Contact  Contact   `json:"contact"`
	CreadoEn time.Time `json:"creado_en"`
}

// Message is a stored chat message. RemitenteID is the agent who wrote it and
// is nil for messages that came in from the contact.
type Message struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chat_id"`
	Content     string    `json:"content"`
	CreadoEn    time.Time `json:"creado_en"`
	RemitenteID *string   `json:"remitente_id,omitempty"`
	ContactoID  string    `json:"contacto_id"`
}

type OpenChatRequest struct {
	Nombre      string  `json:"nombre"`
	Telefono    *string `json:"telefono,omitempty"`
	WhatsappJID *string `json:"whatsapp_jid,omitempty"`
}

type SendRequest struct {
	Content string `json:"content"`
}
