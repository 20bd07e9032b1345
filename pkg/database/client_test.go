package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polis-ai/polis/pkg/config"
	"github.com/polis-ai/polis/pkg/database"
	"github.com/polis-ai/polis/test/util"
)

func newTestClient(t *testing.T) *database.Client {
	t.Helper()

	cfg := config.DefaultDBConfig()
	cfg.URL = util.RawSchemaURL(t)

	client, err := database.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestNewClientRunsMigrations(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// All fact tables plus the transparency log must exist after startup.
	tables := []string{
		"workers", "schedules", "budgets", "infrastructure", "projects",
		"equipment", "incidents", "bins", "routes", "supplies",
		"campaigns", "facilities", "transparency_log",
	}
	for _, table := range tables {
		var exists bool
		err := client.Pool().QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
			table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s missing", table)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	url := util.RawSchemaURL(t)

	require.NoError(t, database.Migrate(url, "polis_test"))
	// A second run is a no-op, not an error.
	require.NoError(t, database.Migrate(url, "polis_test"))
}

func TestQueryRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Pool().Exec(ctx,
		`INSERT INTO workers (department, name, skill, location, available)
		 VALUES ($1, $2, $3, $4, $5)`,
		"water_dept", "A. Rivera", "pipefitting", "ward_12", true)
	require.NoError(t, err)

	var count int
	err = client.Pool().QueryRow(ctx,
		`SELECT count(*) FROM workers WHERE department = $1 AND location = $2 AND available`,
		"water_dept", "ward_12").Scan(&count)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}

func TestHealth(t *testing.T) {
	client := newTestClient(t)

	health, err := database.Health(context.Background(), client.Pool())
	require.NoError(t, err)
	require.NotNil(t, health)

	assert.Equal(t, "healthy", health.Status)
	assert.GreaterOrEqual(t, health.ResponseTime, int64(0))
	assert.Less(t, health.ResponseTime, int64(1000), "local ping should be fast")
	assert.Greater(t, health.MaxConns, int32(0))
}

func TestDSNFromDiscreteFields(t *testing.T) {
	cfg := &config.DBConfig{
		Host: "db.example", Port: 5433, User: "u", Password: "p",
		Database: "polis", SSLMode: "require",
	}
	assert.Equal(t,
		"host=db.example port=5433 user=u password=p dbname=polis sslmode=require",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db.example:5433/polis"
	assert.Equal(t, "postgres://u:p@db.example:5433/polis", cfg.DSN(), "url wins")
}
