// Package actors drives concurrent load against the dispute store.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"disputeai/dispute"
	"disputeai/evidence"
	"disputeai/schema"
)

// Counters tracks what the actors did so the test can reconcile it with the
// database afterwards.
type Counters struct {
	Persisted atomic.Int64
	Bundles   atomic.Int64
	Evidence  atomic.Int64
	Toggles   atomic.Int64
	Deleted   atomic.Int64
}

// Fields returns a complete field set. Every third dispute says the platform
// was contacted, which makes the gated contact description required.
func Fields(r *rand.Rand) map[string]string {
	fields := map[string]string{
		schema.FieldPlatformName:      "Shop " + strconv.Itoa(r.Intn(50)),
		schema.FieldPurchaseDate:      "2025-05-01",
		schema.FieldAmount:            fmt.Sprintf("%d.%02d", 1+r.Intn(900), r.Intn(100)),
		schema.FieldCurrency:          "EUR",
		schema.FieldProblemType:       "item_not_received",
		schema.FieldDescription:       "Parcel never arrived.",
		schema.FieldContactedPlatform: schema.No,
		schema.FieldTrainingConsent:   schema.Yes,
	}
	if r.Intn(3) == 0 {
		fields[schema.FieldContactedPlatform] = schema.Yes
		fields[schema.FieldContactDescription] = "Emailed support twice."
	}
	return fields
}

func evidenceItems(r *rand.Rand) []evidence.Item {
	n := r.Intn(4)
	items := make([]evidence.Item, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("proof-%d.png", i)
		items = append(items, evidence.Item{Name: name, URL: "https://cdn.test/" + name})
	}
	return items
}

// Submitter completes intakes for userID until stop closes.
func Submitter(ctx context.Context, gw *dispute.Gateway, userID string, seed int64, c *Counters, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		items := evidenceItems(r)
		sub, err := gw.Persist(ctx, userID, Fields(r), items, evidence.Meta{Type: "screenshot"})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("submitter persist: %w", err)
		}
		if sub.BundleErr != nil {
			return fmt.Errorf("submitter bundle: %w", sub.BundleErr)
		}
		c.Persisted.Add(1)
		c.Evidence.Add(int64(len(items)))
		if sub.Bundle != nil {
			c.Bundles.Add(1)
		}
		time.Sleep(time.Duration(5+r.Intn(10)) * time.Millisecond)
	}
}

// Archiver flips the archive flag on the owner's disputes. Losing a race to
// another archiver is expected.
func Archiver(ctx context.Context, repo *dispute.Repository, userID string, seed int64, c *Counters, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		list, err := repo.List(ctx, userID, true)
		if err != nil {
			return fmt.Errorf("archiver list: %w", err)
		}
		if len(list) > 0 {
			pick := list[r.Intn(len(list))]
			_, err := repo.SetArchived(ctx, userID, pick.ID, !pick.Archived)
			switch {
			case err == nil:
				c.Toggles.Add(1)
			case errors.Is(err, dispute.ErrAlreadyInState), errors.Is(err, dispute.ErrNotFound):
			default:
				return fmt.Errorf("archiver toggle: %w", err)
			}
		}
		time.Sleep(time.Duration(10+r.Intn(20)) * time.Millisecond)
	}
}

// Reader fetches disputes as the dashboard would. A bundle can appear
// between List and Get, but one listed as present must never vanish.
func Reader(ctx context.Context, repo *dispute.Repository, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		list, err := repo.List(ctx, userID, true)
		if err != nil {
			return fmt.Errorf("reader list: %w", err)
		}
		for _, s := range list {
			detail, err := repo.Get(ctx, userID, s.ID)
			if errors.Is(err, dispute.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("reader get: %w", err)
			}
			if s.ProofUploaded && !detail.ProofUploaded() {
				return fmt.Errorf("reader: dispute %s listed with proof but has no bundle", s.ID)
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
}
