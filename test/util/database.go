// Package util provides shared PostgreSQL provisioning for integration
// tests: one testcontainer per test binary, one migrated schema per test.
package util

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/polis-ai/polis/pkg/database"
)

var (
	// Shared connection string for all tests in local dev
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

// SchemaURL returns a connection URL scoped to a fresh, fully migrated schema
// owned by this test. The schema is dropped when the test finishes, so tests
// sharing the container stay isolated.
func SchemaURL(t *testing.T) string {
	t.Helper()

	url := RawSchemaURL(t)
	require.NoError(t, database.Migrate(url, "polis_test"))
	return url
}

// RawSchemaURL returns a connection URL scoped to a fresh schema with no
// migrations applied, for tests that exercise the migration path themselves.
func RawSchemaURL(t *testing.T) string {
	t.Helper()

	base := BaseConnectionString(t)
	schema := GenerateSchemaName(t)
	createSchema(t, base, schema)
	return AddSearchPathToConnString(base, schema)
}

// Pool returns a pgx pool connected to a fresh migrated schema. Connections
// are closed via t.Cleanup.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), SchemaURL(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// BaseConnectionString returns the base PostgreSQL connection string without
// a schema search_path.
// - CI (CI_DATABASE_URL set): the external PostgreSQL service.
// - Local dev: a shared testcontainer, started once per test binary.
func BaseConnectionString(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("CI_DATABASE_URL"); url != "" {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
		return url
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		t.Log("Starting shared PostgreSQL testcontainer")

		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("polis_test"),
			postgres.WithUsername("polis"),
			postgres.WithPassword("polis"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("failed to get connection string: %w", err)
			return
		}
		sharedConnStr = connStr
	})

	require.NoError(t, containerErr, "failed to set up shared test container")
	return sharedConnStr
}

// createSchema creates the test schema and registers its drop.
func createSchema(t *testing.T, baseConnStr, schemaName string) {
	t.Helper()
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, baseConnStr)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schemaName)
	_ = conn.Close(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		conn, err := pgx.Connect(ctx, baseConnStr)
		if err != nil {
			t.Logf("warning: could not connect to drop schema %s: %v", schemaName, err)
			return
		}
		defer func() { _ = conn.Close(ctx) }()
		if _, err := conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+schemaName+" CASCADE"); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schemaName, err)
		}
	})
}

// GenerateSchemaName creates a unique, PostgreSQL-safe schema name for the
// test. Format: test_<sanitized_test_name>_<random_hex>
func GenerateSchemaName(t *testing.T) string {
	testName := strings.ToLower(t.Name())
	testName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, testName)

	// PostgreSQL identifiers cap at 63 chars.
	if len(testName) > 40 {
		testName = testName[:40]
	}

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		t.Fatalf("failed to generate random bytes for schema name: %v", err)
	}
	return fmt.Sprintf("test_%s_%s", testName, hex.EncodeToString(randomBytes))
}

// AddSearchPathToConnString appends the search_path parameter so every pooled
// connection lands in the given schema.
func AddSearchPathToConnString(connStr, schemaName string) string {
	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%ssearch_path=%s", connStr, separator, schemaName)
}
