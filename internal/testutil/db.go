package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupPool returns a pool on a database holding the stockbot tables.
// TEST_DATABASE_URL points it at an existing database; otherwise a
// postgres:15-alpine container is started, and the test is skipped when no
// container runtime is reachable.
func SetupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load(filepath.Join(ProjectRoot(t), ".env"))
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		if testing.Short() {
			t.Skip("short mode: skipping postgres container")
		}
		testcontainers.SkipIfProviderIsNotHealthy(t)

		container, err := postgres.Run(ctx, "postgres:15-alpine",
			postgres.WithDatabase("stockbot"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		require.NoError(t, err, "failed to start postgres container")
		t.Cleanup(func() {
			if err := container.Terminate(context.Background()); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "failed to get connection string")
	}

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "connect")
	t.Cleanup(pool.Close)

	applySchema(t, ctx, pool)
	return pool
}

// ResetTables empties the stockbot tables between tests sharing a database.
func ResetTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE stock, stock_activity, stock_history`)
	require.NoError(t, err, "truncate")
}

// CreateSchema recreates the stockbot tables inside a fresh schema named
// name and drops it when the test ends.
func CreateSchema(t *testing.T, pool *pgxpool.Pool, name string) {
	t.Helper()
	ctx := context.Background()
	ident := pgx.Identifier{name}.Sanitize()

	_, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+ident+" CASCADE")
	require.NoError(t, err, "drop schema %s", name)
	_, err = pool.Exec(ctx, "CREATE SCHEMA "+ident)
	require.NoError(t, err, "create schema %s", name)
	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+ident+" CASCADE"); err != nil {
			t.Logf("failed to drop schema %s: %v", name, err)
		}
	})

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+ident); err != nil {
			return err
		}
		for _, body := range schemaFiles(t) {
			if _, err := tx.Exec(ctx, body); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err, "apply tables to schema %s", name)
}

func applySchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, body := range schemaFiles(t) {
		_, err := pool.Exec(ctx, body)
		require.NoError(t, err, "apply schema")
	}
}

// schemaFiles returns the sql/postgres files in name order.
func schemaFiles(t *testing.T) []string {
	t.Helper()

	dir := filepath.Join(ProjectRoot(t), "sql", "postgres")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err, "failed to read sql directory")

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	bodies := make([]string, len(files))
	for i, f := range files {
		body, err := os.ReadFile(filepath.Join(dir, f))
		require.NoError(t, err, "read %s", f)
		bodies[i] = string(body)
	}
	return bodies
}

// ProjectRoot walks up from the working directory to the go.mod.
func ProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}
