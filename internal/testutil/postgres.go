package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/target/track-analysis-api/internal/migrate"
)

// dataTables lists every table a test may write to.
var dataTables = []string{
	"analysis_item_outcomes",
	"analysis_attempts",
	"track_analyses",
	"analysis_jobs",
	"queue_messages",
	"user_provider_preferences",
	"tracks",
}

// TestDBConfig locates the shared test database.
type TestDBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultTestDBConfig reads TEST_DB_*. The default port 55432 matches the
// docker-compose test profile; CI sets TEST_DB_PORT=5432.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Host:     envOr("TEST_DB_HOST", "localhost"),
		Port:     envOr("TEST_DB_PORT", "55432"),
		User:     envOr("TEST_DB_USER", "trackanalysis"),
		Password: envOr("TEST_DB_PASSWORD", "trackanalysis"),
		DBName:   envOr("TEST_DB_NAME", "trackanalysis"),
		SSLMode:  envOr("DB_SSL_MODE", "disable"),
	}
}

// DSN renders a pgx connection URL. A non-empty schema is put first on the search_path.
func (c TestDBConfig) DSN(schema string) string {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if schema != "" {
		q.Set("search_path", schema+",public")
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// WithAutoDB hands fn a migrated, empty database. The backing store is
// chosen by environment:
//
//	TEST_DB_CONTAINER=1  a disposable testcontainers Postgres
//	TEST_DB_EPHEMERAL=1  a throwaway schema in the shared database
//	otherwise            the shared database, truncated before and after fn
func WithAutoDB(t TestingTB, fn func(*sql.DB)) {
	t.Helper()
	switch {
	case envBool("TEST_DB_CONTAINER"):
		fn(SetupContainerDB(t))
	case envBool("TEST_DB_EPHEMERAL"):
		fn(setupSchemaDB(t))
	default:
		fn(setupSharedDB(t))
	}
}

func openPinged(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func setupSharedDB(t TestingTB) *sql.DB {
	t.Helper()
	db, err := openPinged(DefaultTestDBConfig().DSN(""), 5*time.Second)
	if err != nil {
		unavailable(t, requireDB(), "test database not available (docker compose --profile test up -d): %v", err)
	}
	migrateSchema(t, db)
	truncateAll(t, db)
	t.Cleanup(func() {
		truncateAll(t, db)
		closeAndLog(t, "test DB", db)
	})
	return db
}

func truncateAll(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stmt := "TRUNCATE " + strings.Join(dataTables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		t.Fatalf("truncate test tables: %v", err)
	}
}

func setupSchemaDB(t TestingTB) *sql.DB {
	t.Helper()
	cfg := DefaultTestDBConfig()
	admin, err := openPinged(cfg.DSN(""), 5*time.Second)
	if err != nil {
		unavailable(t, requireDB(), "test database not available: %v", err)
	}

	schema := randomSchemaName()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		closeAndLog(t, "admin DB", admin)
		t.Fatalf("create schema %s: %v", schema, err)
	}

	db, err := openPinged(cfg.DSN(schema), 10*time.Second)
	t.Cleanup(func() {
		if db != nil {
			closeAndLog(t, "schema DB", db)
		}
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dropCancel()
		if _, err := admin.ExecContext(dropCtx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: drop schema %s: %v", schema, err)
		}
		closeAndLog(t, "admin DB", admin)
	})
	if err != nil {
		t.Fatalf("open schema %s: %v", schema, err)
	}
	db.SetMaxOpenConns(10)
	t.Logf("using ephemeral schema %s", schema)

	migrateSchema(t, db)
	return db
}

func randomSchemaName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("t_%d", time.Now().UnixNano())
	}
	return "t_" + hex.EncodeToString(b)
}

func migrateSchema(t TestingTB, db *sql.DB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrate.Run(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
}

// SeedTracks upserts one catalog track per name and returns their ids in order.
func SeedTracks(t TestingTB, db *sql.DB, names ...string) []int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ids := make([]int64, len(names))
	for i, name := range names {
		err := db.QueryRowContext(ctx, `
			INSERT INTO tracks (spotify_track_id, name, artist, album)
			VALUES ($1, $2, $3, '')
			ON CONFLICT (spotify_track_id) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, "sp-"+name, name, "artist "+name).Scan(&ids[i])
		if err != nil {
			t.Fatalf("seed track %s: %v", name, err)
		}
	}
	return ids
}
