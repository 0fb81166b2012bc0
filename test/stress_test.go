package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"disputeai/dispute"
	"disputeai/test/actors"
	"disputeai/test/infra"
	"disputeai/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 10*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 4, "submitters per user")
	flUsers       = flag.Int("users", 3, "number of dispute owners")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestConcurrentIntakePersistence(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test skipped in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+90*time.Second)
	defer cancel()

	if *flDSN == "" && os.Getenv(infra.DSNEnv) == "" && !infra.DockerAvailable(ctx) {
		t.Skipf("no docker and %s unset", infra.DSNEnv)
	}

	h, err := infra.NewHarness(ctx, *flDSN)
	if err != nil {
		t.Fatalf("harness: %v", err)
	}
	defer h.Close(context.Background())

	pool := h.Pool()
	repo := dispute.NewRepository(pool)
	gw := dispute.NewGateway(repo, nil, zaptest.NewLogger(t))
	users := mustSeedUsers(t, ctx, pool, *flUsers)

	var counters actors.Counters
	g, gctx := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	seed := *flSeed
	for ui, userID := range users {
		userID := userID
		for i := 0; i < *flConcurrency; i++ {
			actorSeed := seed + int64(ui*1000+i)
			g.Go(func() error { return actors.Submitter(gctx, gw, userID, actorSeed, &counters, stop) })
		}
		archiverSeed := seed + int64(ui*1000+999)
		g.Go(func() error { return actors.Archiver(gctx, repo, userID, archiverSeed, &counters, stop) })
		g.Go(func() error { return actors.Reader(gctx, repo, userID, stop) })
	}

	deadline := time.After(*flDuration)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-deadline:
			break loop
		case <-gctx.Done():
			break loop
		case <-ticker.C:
			if err := oracles.Run(gctx, pool); err != nil {
				if errors.Is(err, context.Canceled) {
					break loop
				}
				dumpRecent(t, ctx, pool)
				close(stop)
				_ = g.Wait()
				t.Fatalf("%v (seed=%d)", err, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil {
		t.Fatalf("actors errored: %v (seed=%d)", err, seed)
	}

	if err := oracles.Run(ctx, pool); err != nil {
		dumpRecent(t, ctx, pool)
		t.Fatalf("%v (seed=%d)", err, seed)
	}

	var disputes, bundles, evidenceCount int64
	err = pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM disputes),
			(SELECT COUNT(*) FROM proof_bundles),
			(SELECT COALESCE(SUM(1 + COALESCE(array_length(secondary_urls, 1), 0)), 0) FROM proof_bundles)`,
	).Scan(&disputes, &bundles, &evidenceCount)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if disputes != counters.Persisted.Load() {
		t.Fatalf("disputes = %d, submitters persisted %d", disputes, counters.Persisted.Load())
	}
	if bundles != counters.Bundles.Load() {
		t.Fatalf("bundles = %d, submitters attached %d", bundles, counters.Bundles.Load())
	}
	if evidenceCount != counters.Evidence.Load() {
		t.Fatalf("evidence references = %d, submitters uploaded %d", evidenceCount, counters.Evidence.Load())
	}
	t.Logf("persisted=%d bundles=%d toggles=%d seed=%d",
		counters.Persisted.Load(), counters.Bundles.Load(), counters.Toggles.Load(), seed)
}

func mustSeedUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var id string
		err := pool.QueryRow(ctx,
			`INSERT INTO users (email, full_name, password_hash) VALUES ($1, $2, 'x') RETURNING id::text`,
			fmt.Sprintf("stress-%d-%d@example.com", time.Now().UnixNano(), i), fmt.Sprintf("Stress User %d", i),
		).Scan(&id)
		if err != nil {
			t.Fatalf("seed user: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	dumps := []struct {
		name string
		sql  string
	}{
		{"disputes", `SELECT id, user_id, status, user_confirmed_input, archived, contacted_platform, created_at FROM disputes ORDER BY created_at DESC LIMIT 50`},
		{"proof_bundles", `SELECT id, dispute_id, primary_name, secondary_names, created_at FROM proof_bundles ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", cols[i].Name, vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
