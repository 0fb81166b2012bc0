package infra

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns a migrated database for one test run.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	dsn       string
	teardown  func(context.Context) error
}

// NewHarness starts (or reuses, see DSNEnv) a Postgres database and applies
// the migrations.
func NewHarness(ctx context.Context, override string) (*Harness, error) {
	container, dsn, err := StartPostgres(ctx, override)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	pool, teardown, err := Prepare(ctx, dsn, container.Shared())
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("prepare database: %w", err)
	}

	return &Harness{container: container, pool: pool, dsn: dsn, teardown: teardown}, nil
}

func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.teardown != nil {
		_ = h.teardown(ctx)
	}
	_ = h.container.Terminate(ctx)
}

// Reset empties every table. Bundles and disputes go with their users.
func (h *Harness) Reset(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, "TRUNCATE TABLE users CASCADE"); err != nil {
		return fmt.Errorf("truncate users: %w", err)
	}
	return nil
}

// DockerAvailable reports whether a container can be started.
func DockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}
