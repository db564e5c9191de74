//go:build integration_test

package postgres_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/victornm/quizshare/internal/store"
	"github.com/victornm/quizshare/internal/store/postgres"
	"github.com/victornm/quizshare/internal/store/postgres/migrations"
	"github.com/victornm/quizshare/internal/store/storetest"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t, ctx)

	require.NoError(t, migrations.Up(ctx, dsn))

	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := postgres.Connect(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(db.Close)

		return postgres.New(db)
	})
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()

	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
}
