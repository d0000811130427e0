// Package testkit starts throwaway Postgres and Redis containers for
// integration tests. Tests using it are skipped with -short or when no
// container runtime is reachable.
package testkit

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/govault/internal/pkg/migration"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const startTimeout = 2 * time.Minute

func skipUnlessIntegration(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// Postgres starts a migrated Postgres and returns a pool connected to it.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	skipUnlessIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("govault"),
		tcpostgres.WithUsername("govault"),
		tcpostgres.WithPassword("govault"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}

	if err := migration.Up(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// Redis starts a Redis server and returns a client connected to it.
func Redis(t *testing.T) *redis.Client {
	t.Helper()
	skipUnlessIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, nat.Port("6379/tcp"))
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	return client
}
