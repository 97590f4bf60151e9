package notification

import (
	"context"
	"database/sql"
	"fmt"
)

const listLimit = 100

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, n *Notification) error {
	var data any
	if len(n.Data) > 0 {
		data = []byte(n.Data)
	}
	query := `
		INSERT INTO notificaciones (id, usuario_id, titulo, mensaje, tipo, leida, data, fecha)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Titulo, n.Mensaje, n.Tipo, n.Leida, data, n.Fecha); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string, onlyUnread bool) ([]Notification, error) {
	query := `
		SELECT id, usuario_id, titulo, mensaje, tipo, leida, data, fecha
		FROM notificaciones
		WHERE usuario_id = $1 AND ($2 = FALSE OR leida = FALSE)
		ORDER BY fecha DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, onlyUnread, listLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Titulo, &n.Mensaje, &n.Tipo, &n.Leida, &data, &n.Fecha); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if len(data) > 0 {
			n.Data = data
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notificaciones SET leida = TRUE WHERE id = $1 AND usuario_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
