package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"beast-crm/internal/config"
)

type Database struct {
	Conn *sql.DB
}

func NewDatabase(ctx context.Context, cfg config.PostgresConfig) (*Database, error) {
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return &Database{Conn: conn}, nil
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

// AutoMigrate creates the tables the realtime producers write to. The rest of
// the CRM schema is owned elsewhere.
func (d *Database) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS contactos (
            id UUID PRIMARY KEY,
            nombre VARCHAR(255) NOT NULL,
            telefono VARCHAR(50),
            whatsapp_jid VARCHAR(255),
            creado_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE TABLE IF NOT EXISTS chats (
            id UUID PRIMARY KEY,
            contacto_id UUID NOT NULL REFERENCES contactos(id) ON DELETE CASCADE,
            creado_en TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            actualizado_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE TABLE IF NOT EXISTS mensajes (
            id UUID PRIMARY KEY,
            chat_id UUID NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            contenido TEXT NOT NULL,
            remitente_id UUID,
            contacto_id UUID NOT NULL REFERENCES contactos(id) ON DELETE CASCADE,
            creado_en TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE INDEX IF NOT EXISTS mensajes_chat_creado_idx ON mensajes (chat_id, creado_en DESC)`,

		`CREATE TABLE IF NOT EXISTS notificaciones (
            id UUID PRIMARY KEY,
            usuario_id UUID NOT NULL,
            titulo VARCHAR(255) NOT NULL,
            mensaje TEXT NOT NULL,
            tipo VARCHAR(20) NOT NULL DEFAULT 'info',
            leida BOOLEAN NOT NULL DEFAULT FALSE,
            data JSONB,
            fecha TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,

		`CREATE INDEX IF NOT EXISTS notificaciones_usuario_idx ON notificaciones (usuario_id, fecha DESC)`,
	}

	for _, query := range queries {
		if _, err := d.Conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
