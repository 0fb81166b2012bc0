// Package oracles holds SQL invariants over the dispute tables. Each query
// returns the offending rows; an empty result means the invariant holds.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Oracle is a named query whose rows are violations.
type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "single_bundle_per_dispute",
			SQL: `SELECT dispute_id FROM proof_bundles
	GROUP BY dispute_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "secondary_arrays_aligned",
			SQL: `SELECT id FROM proof_bundles
	WHERE COALESCE(array_length(secondary_urls, 1), 0) <> COALESCE(array_length(secondary_names, 1), 0)`,
		},
		{
			Name: "intake_starts_as_confirmed_draft",
			SQL: `SELECT id FROM disputes
	WHERE status = 'draft' AND NOT user_confirmed_input`,
		},
		{
			Name: "contact_detail_when_contacted",
			SQL: `SELECT id FROM disputes
	WHERE contacted_platform AND COALESCE(btrim(contact_description), '') = ''`,
		},
		{
			Name: "bundle_created_after_dispute",
			SQL: `SELECT b.id FROM proof_bundles b
	JOIN disputes d ON d.id = b.dispute_id
	WHERE b.created_at < d.created_at`,
		},
	}
}

// Run executes every oracle and reports the first violation.
func Run(ctx context.Context, pool *pgxpool.Pool) error {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return fmt.Errorf("%s: %w", o.Name, err)
		}
		violated := rows.Next()
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("%s: %w", o.Name, err)
		}
		if violated {
			return fmt.Errorf("oracle %s violated", o.Name)
		}
	}
	return nil
}
