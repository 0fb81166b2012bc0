package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"disputeai/db"
)

// Prepare opens a pool on dsn and applies the embedded migrations. With
// isolate set, every connection works inside a fresh schema that the
// returned teardown drops, so runs against a shared database do not collide.
func Prepare(ctx context.Context, dsn string, isolate bool) (*pgxpool.Pool, func(context.Context) error, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool config: %w", err)
	}
	cfg.MaxConns = 32
	cfg.MaxConnIdleTime = 30 * time.Second

	teardown := func(context.Context) error { return nil }

	if isolate {
		schema := fmt.Sprintf("disputeai_test_%d", time.Now().UnixNano())
		admin, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect admin: %w", err)
		}
		ident := pgx.Identifier{schema}.Sanitize()
		_, err = admin.Exec(ctx, "CREATE SCHEMA "+ident)
		_ = admin.Close(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create schema: %w", err)
		}

		cfg.ConnConfig.RuntimeParams["search_path"] = schema + ",public"
		teardown = func(ctx context.Context) error {
			conn, err := pgx.Connect(ctx, dsn)
			if err != nil {
				return err
			}
			defer conn.Close(ctx)
			_, err = conn.Exec(ctx, "DROP SCHEMA IF EXISTS "+ident+" CASCADE")
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		_ = teardown(ctx)
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		_ = teardown(ctx)
		return nil, nil, err
	}
	return pool, teardown, nil
}
