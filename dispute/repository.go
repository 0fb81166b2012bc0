package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("dispute: not found")
	ErrNoIdentifier   = errors.New("dispute: insert returned no identifier")
	ErrUnknownOwner   = errors.New("dispute: owner does not exist")
	ErrAlreadyInState = errors.New("dispute: already in requested archive state")
)

const recordColumns = `
	d.id::text, d.user_id::text, d.platform_name, d.purchase_date, d.amount::text, d.currency,
	d.order_number, d.problem_type, d.problem_subtype, d.description, d.contacted_platform,
	d.contact_description, d.training_consent, d.status, d.user_confirmed_input, d.archived,
	d.created_at, d.updated_at`

// Repository is the PostgreSQL store for disputes and proof bundles. Every
// read and write is scoped to the owning user.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed dispute repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateDispute inserts a dispute owned by params.UserID. No dedup key is
// applied: identical params produce distinct rows.
func (r *Repository) CreateDispute(ctx context.Context, params CreateParams) (Record, error) {
	status := params.Status
	if status == "" {
		status = StatusDraft
	}

	const query = `
		INSERT INTO disputes AS d (
			user_id, platform_name, purchase_date, amount, currency, order_number,
			problem_type, problem_subtype, description, contacted_platform,
			contact_description, training_consent, status, user_confirmed_input, archived
		)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, false)
		RETURNING` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query,
		params.UserID,
		params.PlatformName,
		params.PurchaseDate,
		params.Amount,
		params.Currency,
		params.OrderNumber,
		params.ProblemType,
		params.ProblemSubtype,
		params.Description,
		params.ContactedPlatform,
		params.ContactDescription,
		params.TrainingConsent,
		string(status),
		params.UserConfirmedInput,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Record{}, ErrUnknownOwner
		}
		return Record{}, fmt.Errorf("dispute: create: %w", err)
	}
	if rec.ID == "" {
		return Record{}, ErrNoIdentifier
	}
	return rec, nil
}

// CreateProofBundle inserts the bundle referencing an existing dispute.
func (r *Repository) CreateProofBundle(ctx context.Context, params BundleParams) (ProofBundle, error) {
	const query = `
		INSERT INTO proof_bundles (dispute_id, primary_url, primary_name, secondary_urls, secondary_names, evidence_type, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text, dispute_id::text, primary_url, primary_name, secondary_urls, secondary_names, evidence_type, description, created_at
	`

	secondaryURLs := params.SecondaryURLs
	if secondaryURLs == nil {
		secondaryURLs = []string{}
	}
	secondaryNames := params.SecondaryNames
	if secondaryNames == nil {
		secondaryNames = []string{}
	}

	b, err := scanBundle(r.pool.QueryRow(ctx, query,
		params.DisputeID,
		params.PrimaryURL,
		params.PrimaryName,
		secondaryURLs,
		secondaryNames,
		params.EvidenceType,
		params.Description,
	))
	if err != nil {
		return ProofBundle{}, fmt.Errorf("dispute: create proof bundle: %w", err)
	}
	return b, nil
}

// Get loads one dispute owned by ownerID with its bundle.
func (r *Repository) Get(ctx context.Context, ownerID, disputeID string) (Detail, error) {
	query := `SELECT` + recordColumns + ` FROM disputes d WHERE d.id = $1 AND d.user_id = $2`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, disputeID, ownerID))
	if err != nil {
		if isNotFound(err) {
			return Detail{}, ErrNotFound
		}
		return Detail{}, fmt.Errorf("dispute: get: %w", err)
	}

	const bundleSQL = `
		SELECT id::text, dispute_id::text, primary_url, primary_name, secondary_urls, secondary_names, evidence_type, description, created_at
		FROM proof_bundles
		WHERE dispute_id = $1
		ORDER BY created_at ASC
		LIMIT 1
	`
	detail := Detail{Record: rec}
	b, err := scanBundle(r.pool.QueryRow(ctx, bundleSQL, rec.ID))
	switch {
	case err == nil:
		detail.Bundle = &b
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return Detail{}, fmt.Errorf("dispute: get proof bundle: %w", err)
	}
	return detail, nil
}

// List returns the owner's disputes, newest first. Archived disputes are
// returned only when includeArchived is set.
func (r *Repository) List(ctx context.Context, ownerID string, includeArchived bool) ([]Summary, error) {
	query := `SELECT` + recordColumns + `,
			EXISTS (SELECT 1 FROM proof_bundles pb WHERE pb.dispute_id = d.id)
		FROM disputes d
		WHERE d.user_id = $1`
	if !includeArchived {
		query += " AND NOT d.archived"
	}
	query += " ORDER BY d.created_at DESC"

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		if isNotFound(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0, 8)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(append(recordDest(&s.Record), &s.ProofUploaded)...); err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// SetArchived archives or restores a dispute.
func (r *Repository) SetArchived(ctx context.Context, ownerID, disputeID string, archived bool) (Record, error) {
	query := `
		UPDATE disputes d
		SET archived = $3, updated_at = now()
		WHERE d.id = $1 AND d.user_id = $2 AND d.archived <> $3
		RETURNING` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, disputeID, ownerID, archived))
	if err == nil {
		return rec, nil
	}
	if !isNotFound(err) {
		return Record{}, fmt.Errorf("dispute: set archived: %w", err)
	}

	const check = `SELECT archived FROM disputes WHERE id = $1 AND user_id = $2`
	var current bool
	if err := r.pool.QueryRow(ctx, check, disputeID, ownerID).Scan(&current); err != nil {
		if isNotFound(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: set archived fetch: %w", err)
	}
	return Record{}, ErrAlreadyInState
}

// Delete removes a dispute; its proof bundle cascades.
func (r *Repository) Delete(ctx context.Context, ownerID, disputeID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM disputes WHERE id = $1 AND user_id = $2`, disputeID, ownerID)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("dispute: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func recordDest(rec *Record) []any {
	return []any{
		&rec.ID, &rec.UserID, &rec.PlatformName, &rec.PurchaseDate, &rec.Amount, &rec.Currency,
		&rec.OrderNumber, &rec.ProblemType, &rec.ProblemSubtype, &rec.Description, &rec.ContactedPlatform,
		&rec.ContactDescription, &rec.TrainingConsent, &rec.Status, &rec.UserConfirmedInput, &rec.Archived,
		&rec.CreatedAt, &rec.UpdatedAt,
	}
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	if err := row.Scan(recordDest(&rec)...); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func scanBundle(row pgx.Row) (ProofBundle, error) {
	var b ProofBundle
	err := row.Scan(&b.ID, &b.DisputeID, &b.PrimaryURL, &b.PrimaryName, &b.SecondaryURLs, &b.SecondaryNames, &b.EvidenceType, &b.Description, &b.CreatedAt)
	if err != nil {
		return ProofBundle{}, err
	}
	return b, nil
}

// isNotFound treats malformed identifiers like missing rows.
func isNotFound(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
