package testutil

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const containerImage = "postgres:16-alpine"

// SetupContainerDB starts a disposable Postgres container, runs migrations and
// registers termination with t.Cleanup. Selected with TEST_DB_CONTAINER=1.
func SetupContainerDB(t TestingTB) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		containerImage,
		postgres.WithDatabase("trackanalysis_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		unavailable(t, requireDB(), "postgres container not available: %v", err)
	}
	t.Cleanup(func() {
		if termErr := pgContainer.Terminate(context.Background()); termErr != nil {
			t.Logf("warning: failed to terminate postgres container: %v", termErr)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal("Failed to get container connection string:", err)
	}
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		t.Fatal("Failed to open container database:", err)
	}
	t.Cleanup(func() { closeAndLog(t, "container DB", db) })

	migrateSchema(t, db)
	return db
}

// startRedisContainer runs redis:7-alpine and returns its address.
func startRedisContainer(t TestingTB) (string, bool) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Logf("Redis container not available: %v", err)
		return "", false
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(context.Background()); termErr != nil {
			t.Logf("warning: failed to terminate redis container: %v", termErr)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Logf("Redis container host: %v", err)
		return "", false
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Logf("Redis container port: %v", err)
		return "", false
	}
	return net.JoinHostPort(host, port.Port()), true
}
