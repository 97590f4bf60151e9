package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"beast-crm/internal/events"
)

// Store is the persistence the service needs; *Repository satisfies it.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, onlyUnread bool) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
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

// Create persists the notification and then announces it to connected
// clients. The announcement outcome never changes the result.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Notification, error) {
	in.Titulo = strings.TrimSpace(in.Titulo)
	in.Mensaje = strings.TrimSpace(in.Mensaje)
	if in.Titulo == "" || in.Mensaje == "" {
		return nil, ErrInvalidInput
	}
	if _, err := uuid.Parse(in.UserID); err != nil {
		return nil, ErrInvalidInput
	}

	switch in.Tipo {
	case "":
		in.Tipo = TypeInfo
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, in.Tipo)
	}

	n := &Notification{
		ID:      uuid.NewString(),
		UserID:  in.UserID,
		Titulo:  in.Titulo,
		Mensaje: in.Mensaje,
		Tipo:    in.Tipo,
		Fecha:   s.now().UTC(),
		Data:    in.Data,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, events.TypeNotificationNew, events.NotificationEvent{
		Notification: events.NotificationPayload{
			ID:      n.ID,
			Titulo:  n.Titulo,
			Mensaje: n.Mensaje,
			Tipo:    n.Tipo,
			Fecha:   n.Fecha,
			Leida:   n.Leida,
			Data:    n.Data,
		},
		UserID: n.UserID,
	})

	return n, nil
}

// CreateFor is Create on behalf of a caller: only notifier roles may target
// a user other than themselves. An empty in.UserID targets the caller.
func (s *Service) CreateFor(ctx context.Context, callerID, callerRole string, in CreateInput) (*Notification, error) {
	switch {
	case in.UserID == "":
		in.UserID = callerID
	case in.UserID != callerID && !notifierRoles[callerRole]:
		return nil, ErrForbidden
	}
	return s.Create(ctx, in)
}

func (s *Service) List(ctx context.Context, userID string, onlyUnread bool) ([]Notification, error) {
	return s.store.ListByUser(ctx, userID, onlyUnread)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.store.MarkRead(ctx, userID, id)
}
