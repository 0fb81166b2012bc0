package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"disputeai/events"
	"disputeai/evidence"
)

// ErrIdentityRequired signals a persistence attempt without an owner.
var ErrIdentityRequired = errors.New("dispute: authenticated user required")

// Store is the write surface the gateway needs.
type Store interface {
	CreateDispute(ctx context.Context, params CreateParams) (Record, error)
	CreateProofBundle(ctx context.Context, params BundleParams) (ProofBundle, error)
}

// Submission is the result of a wizard completion.
type Submission struct {
	Dispute Record
	Bundle  *ProofBundle
	// BundleErr is set when the dispute was stored but its evidence was not.
	BundleErr error
}

// Gateway performs the two writes of a completed intake.
type Gateway struct {
	store     Store
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewGateway builds a gateway. A nil publisher or logger is replaced by a
// no-op.
func NewGateway(store Store, publisher events.Publisher, logger *zap.Logger) *Gateway {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time stamped on published events.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Persist creates the dispute and, when items is non-empty, one proof bundle
// whose primary reference is items[0]. A dispute write failure aborts before
// the bundle. A bundle write failure is not rolled back: the dispute stays
// and Submission.BundleErr carries the cause.
func (g *Gateway) Persist(ctx context.Context, userID string, fields map[string]string, items []evidence.Item, meta evidence.Meta) (Submission, error) {
	if userID == "" {
		return Submission{}, ErrIdentityRequired
	}

	params, err := ParamsFromFields(userID, fields)
	if err != nil {
		return Submission{}, err
	}

	rec, err := g.store.CreateDispute(ctx, params)
	if err != nil {
		return Submission{}, err
	}
	if rec.ID == "" {
		return Submission{}, ErrNoIdentifier
	}

	sub := Submission{Dispute: rec}
	if len(items) > 0 {
		bundle, err := g.store.CreateProofBundle(ctx, BundleFromItems(rec.ID, items, meta))
		if err != nil {
			g.logger.Warn("proof bundle not stored; dispute kept without evidence",
				zap.String("dispute_id", rec.ID),
				zap.Int("evidence_count", len(items)),
				zap.Error(err),
			)
			sub.BundleErr = fmt.Errorf("dispute: attach evidence: %w", err)
		} else {
			sub.Bundle = &bundle
		}
	}

	if err := events.PublishDisputeSubmitted(ctx, g.publisher, events.DisputeSubmitted{
		DisputeID:     rec.ID,
		UserID:        userID,
		ProblemType:   rec.ProblemType,
		ProofAttached: sub.Bundle != nil,
		EvidenceCount: len(items),
		OccurredAt:    g.now().UTC(),
	}); err != nil {
		g.logger.Warn("dispute event not published", zap.String("dispute_id", rec.ID), zap.Error(err))
	}

	g.logger.Info("dispute persisted",
		zap.String("dispute_id", rec.ID),
		zap.String("user_id", userID),
		zap.Bool("proof_attached", sub.Bundle != nil),
	)
	return sub, nil
}
