package notification

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("notification: user_id must be a uuid and titulo and mensaje are required")
	ErrInvalidType  = errors.New("notification: unknown tipo")
	ErrNotFound     = errors.New("notification: not found")
	ErrForbidden    = errors.New("notification: caller may not notify another user")
)

// Roles allowed to notify users other than themselves.
var notifierRoles = map[string]bool{"service_role": true, "admin": true}

const (
	TypeInfo    = "info"
	TypeSuccess = "success"
	TypeWarning = "warning"
	TypeError   = "error"
)

type Notification struct {
	ID      string          `json:"id"`
	UserID  string          `json:"user_id"`
	Titulo  string          `json:"titulo"`
	Mensaje string          `json:"mensaje"`
	Tipo    string          `json:"tipo"`
	Fecha   time.Time       `json:"fecha"`
	Leida   bool            `json:"leida"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type CreateInput struct {
	UserID  string          `json:"user_id"`
	Titulo  string          `json:"titulo"`
	Mensaje string          `json:"mensaje"`
	Tipo    string          `json:"tipo"`
	Data    json.RawMessage `json:"data,omitempty"`
}
