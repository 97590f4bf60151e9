// Package testhelpers runs the service's backing stores in Docker for
// integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"beast-crm/internal/config"
	"beast-crm/internal/db"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "beast"
	postgresPassword = "beast"
	postgresDB       = "beast_crm"
)

// SetupPostgres starts a throwaway Postgres, connects to it and applies the
// schema. The container is removed when the test completes.
//
// Callers skip in short mode:
//
//	if testing.Short() {
//	    t.Skip("Skipping container-based test in short mode")
//	}
func SetupPostgres(t *testing.T) *db.Database {
	t.Helper()

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		// The entrypoint restarts the server once after init; the second
		// "ready" line is the real one.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get postgres port: %v", err)
	}

	cfg := config.Defaults().Postgres
	cfg.DSN = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		postgresUser, postgresPassword, host, port.Int(), postgresDB)
	cfg.PingTimeout = 10 * time.Second

	database, err := db.NewDatabase(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := database.AutoMigrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	t.Logf("Postgres started: %s:%d", host, port.Int())
	return database
}
