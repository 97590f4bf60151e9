package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"beast-crm/internal/events"
)

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	ChatContact(ctx context.Context, chatID string) (*Contact, error)
	FindOrCreateChat(ctx context.Context, in OpenChatRequest) (*Chat, error)
	SaveMessage(ctx context.Context, m *Message) error
	RecentMessages(ctx context.Context, chatID string, limit int) ([]Message, error)
}

type Service struct {
	store   Store
	emitter events.Emitter
	now     func() time.Time
}

func NewService(store Store, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Service{store: store, emitter: emitter, now: time.Now}
}

func (s *Service) OpenChat(ctx context.Context, in OpenChatRequest) (*Chat, error) {
	in.Nombre = strings.TrimSpace(in.Nombre)
	in.Telefono = trimmedOrNil(in.Telefono)
	in.WhatsappJID = trimmedOrNil(in.WhatsappJID)
	if in.Nombre == "" || (in.Telefono == nil && in.WhatsappJID == nil) {
		return nil, ErrInvalidInput
	}
	return s.store.FindOrCreateChat(ctx, in)
}

// Send stores a message written by an agent and announces it.
func (s *Service) Send(ctx context.Context, chatID, remitenteID, content string) (*Message, error) {
	var remitente *string
	if remitenteID != "" {
		remitente = &remitenteID
	}
	return s.saveAndEmit(ctx, chatID, remitente, content)
}

// Receive stores a message that came in from the chat's contact.
func (s *Service) Receive(ctx context.Context, chatID, content string) (*Message, error) {
	return s.saveAndEmit(ctx, chatID, nil, content)
}

func (s *Service) History(ctx context.Context, chatID string, limit int) ([]Message, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	if _, err := s.contact(ctx, chatID); err != nil {
		return nil, err
	}
	return s.store.RecentMessages(ctx, chatID, limit)
}

func (s *Service) saveAndEmit(ctx context.Context, chatID string, remitente *string, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	contact, err := s.contact(ctx, chatID)
	if err != nil {
		return nil, err
	}

	m := &Message{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Content:     content,
		CreadoEn:    s.now().UTC(),
		RemitenteID: remitente,
		ContactoID:  contact.ID,
	}
	if err := s.store.SaveMessage(ctx, m); err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, events.TypeChatNewMessage, events.ChatMessageEvent{
		ChatID: chatID,
		Message: events.ChatMessage{
			ID:          m.ID,
			Content:     m.Content,
			CreadoEn:    m.CreadoEn,
			RemitenteID: m.RemitenteID,
			ContactoID:  m.ContactoID,
		},
		Contact: events.ChatContact{
			ID:          contact.ID,
			Nombre:      contact.Nombre,
			Telefono:    contact.Telefono,
			WhatsappJID: contact.WhatsappJID,
		},
	})

	return m, nil
}

// Chat ids are UUIDs; anything else cannot name a chat.
func (s *Service) contact(ctx context.Context, chatID string) (*Contact, error) {
	if _, err := uuid.Parse(chatID); err != nil {
		return nil, ErrChatNotFound
	}
	return s.store.ChatContact(ctx, chatID)
}

// Blank identifiers are stored as NULL so they never match another contact.
func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
