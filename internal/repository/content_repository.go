package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/stream-access/internal/domain"
)

// ContentRepository encapsulates catalog persistence.
type ContentRepository interface {
	Get(ctx context.Context, contentID string) (*domain.ContentRecord, error)
	// Publish upserts the record and returns the new monotonic version. The
	// version bump happens inside the statement so concurrent publishes
	// never observe the same version.
	Publish(ctx context.Context, record *domain.ContentRecord) (int64, error)
}

type contentRepository struct {
	pool *pgxpool.Pool
}

// NewContentRepository instantiates the pgx-backed repository.
func NewContentRepository(pool *pgxpool.Pool) ContentRepository {
	return &contentRepository{pool: pool}
}

func (r *contentRepository) Get(ctx context.Context, contentID string) (*domain.ContentRecord, error) {
	const query = `
        SELECT id, title, locator, visibility, window_start, window_end, version, updated_at
        FROM content WHERE id=$1`

	var record domain.ContentRecord
	if err := r.pool.QueryRow(ctx, query, contentID).Scan(
		&record.ID,
		&record.Title,
		&record.Locator,
		&record.Visibility,
		&record.WindowStart,
		&record.WindowEnd,
		&record.Version,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *contentRepository) Publish(ctx context.Context, record *domain.ContentRecord) (int64, error) {
	const query = `
        INSERT INTO content (id, title, locator, visibility, window_start, window_end, version, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,1,NOW())
        ON CONFLICT (id) DO UPDATE SET
            title=EXCLUDED.title,
            locator=EXCLUDED.locator,
            visibility=EXCLUDED.visibility,
            window_start=EXCLUDED.window_start,
            window_end=EXCLUDED.window_end,
            version=content.version + 1,
            updated_at=NOW()
        RETURNING version`

	var version int64
	if err := r.pool.QueryRow(ctx, query,
		record.ID,
		record.Title,
		record.Locator,
		record.Visibility,
		record.WindowStart,
		record.WindowEnd,
	).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
