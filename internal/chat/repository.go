package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ChatContact returns the contact a chat belongs to.
func (r *Repository) ChatContact(ctx context.Context, chatID string) (*Contact, error) {
	query := `
		SELECT c.id, c.nombre, c.telefono, c.whatsapp_jid
		FROM chats ch
		JOIN contactos c ON c.id = ch.contacto_id
		WHERE ch.id = $1
	`
	contact := &Contact{}
	err := r.db.QueryRowContext(ctx, query, chatID).
		Scan(&contact.ID, &contact.Nombre, &contact.Telefono, &contact.WhatsappJID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load chat contact: %w", err)
	}
	return contact, nil
}

// FindOrCreateChat returns the chat of the contact matching telefono or
// whatsapp_jid, creating contact and chat when none exists.
func (r *Repository) FindOrCreateChat(ctx context.Context, in OpenChatRequest) (*Chat, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	chat := &Chat{}
	err = tx.QueryRowContext(ctx, `
		SELECT ch.id, ch.creado_en, c.id, c.nombre, c.telefono, c.whatsapp_jid
		FROM contactos c
		JOIN chats ch ON ch.contacto_id = c.id
		WHERE ($1::text IS NOT NULL AND c.telefono = $1) OR ($2::text IS NOT NULL AND c.whatsapp_jid = $2)
		ORDER BY ch.creado_en
		LIMIT 1
	`, in.Telefono, in.WhatsappJID).Scan(&chat.ID, &chat.CreadoEn,
		&chat.Contact.ID, &chat.Contact.Nombre, &chat.Contact.Telefono, &chat.Contact.WhatsappJID)
	if err == nil {
		return chat, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find chat: %w", err)
	}

	chat.Contact = Contact{ID: uuid.NewString(), Nombre: in.Nombre, Telefono: in.Telefono, WhatsappJID: in.WhatsappJID}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO contactos (id, nombre, telefono, whatsapp_jid) VALUES ($1, $2, $3, $4)`,
		chat.Contact.ID, chat.Contact.Nombre, chat.Contact.Telefono, chat.Contact.WhatsappJID); err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}

	chat.ID = uuid.NewString()
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO chats (id, contacto_id) VALUES ($1, $2) RETURNING creado_en`,
		chat.ID, chat.Contact.ID).Scan(&chat.CreadoEn); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	return chat, tx.Commit()
}

func (r *Repository) SaveMessage(ctx context.Context, m *Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO mensajes (id, chat_id, contenido, remitente_id, contacto_id, creado_en)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, query, m.ID, m.ChatID, m.Content, m.RemitenteID, m.ContactoID, m.CreadoEn); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE chats SET actualizado_en = $2 WHERE id = $1`, m.ChatID, m.CreadoEn); err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return tx.Commit()
}

// RecentMessages returns up to limit messages of a chat, newest first.
func (r *Repository) RecentMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	query := `
		SELECT id, chat_id, contenido, creado_en, remitente_id, contacto_id
		FROM mensajes
		WHERE chat_id = $1
		ORDER BY creado_en DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Content, &m.CreadoEn, &m.RemitenteID, &m.ContactoID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
