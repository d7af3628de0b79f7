//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/taskhub/pkg/storage"
	"github.com/platinummonkey/taskhub/pkg/storage/storagetest"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("taskhub_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPostgresConformance(t *testing.T) {
	connStr := startPostgres(t)

	storagetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		store, err := Open(ctx, storage.Config{
			Type:             "postgres",
			PostgresURL:      connStr,
			PostgresMaxConns: 5,
			PostgresMinConns: 1,
			PostgresTimeout:  10 * time.Second,
		})
		require.NoError(t, err)
		require.NoError(t, store.Migrate(ctx))

		_, err = store.db.ExecContext(ctx, `TRUNCATE users, projects, project_members, tasks, task_dependencies, activities`)
		require.NoError(t, err)

		t.Cleanup(func() { store.Close() })
		return store
	})
}
