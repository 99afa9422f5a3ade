package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/stream-access/internal/domain"
)

// EntitlementRepository encapsulates entitlement persistence.
type EntitlementRepository interface {
	Get(ctx context.Context, userID string) (*domain.EntitlementRecord, error)
	// Upsert persists the record. The sequence guard in the write makes a
	// replayed event a no-op even when two consumers race on the same row.
	Upsert(ctx context.Context, record *domain.EntitlementRecord) error
}

type entitlementRepository struct {
	pool *pgxpool.Pool
}

// NewEntitlementRepository instantiates the pgx-backed repository.
func NewEntitlementRepository(pool *pgxpool.Pool) EntitlementRepository {
	return &entitlementRepository{pool: pool}
}

func (r *entitlementRepository) Get(ctx context.Context, userID string) (*domain.EntitlementRecord, error) {
	const query = `
        SELECT user_id, status, valid_until, last_payment_id, last_sequence, updated_at
        FROM entitlements WHERE user_id=$1`

	var record domain.EntitlementRecord
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&record.UserID,
		&record.Status,
		&record.ValidUntil,
		&record.LastPaymentID,
		&record.LastSequence,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *entitlementRepository) Upsert(ctx context.Context, record *domain.EntitlementRecord) error {
	const query = `
        INSERT INTO entitlements (user_id, status, valid_until, last_payment_id, last_sequence, updated_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            status=EXCLUDED.status,
            valid_until=EXCLUDED.valid_until,
            last_payment_id=EXCLUDED.last_payment_id,
            last_sequence=EXCLUDED.last_sequence,
            updated_at=NOW()
        WHERE entitlements.last_sequence < EXCLUDED.last_sequence`

	_, err := r.pool.Exec(ctx, query,
		record.UserID,
		record.Status,
		record.ValidUntil,
		record.LastPaymentID,
		record.LastSequence,
	)
	return err
}
