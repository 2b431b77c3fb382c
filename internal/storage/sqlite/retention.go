package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sandevgo/tuskmem/internal/core"
)

type RetentionRepo struct {
	db *sql.DB
}

func NewRetentionRepo(db *sql.DB) *RetentionRepo {
	return &RetentionRepo{db: db}
}

// ExpiredItems selects, oldest first, items created before the cutoff whose
// tag is not protected. Untagged items are always selected.
func (r *RetentionRepo) ExpiredItems(ctx context.Context, before time.Time, protectedTags []string, limit int) ([]core.StoredItem, error) {
	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.created_at < ?`
	args := []any{before.UnixMilli()}

	if len(protectedTags) > 0 {
		query += ` AND (i.tags IS NULL OR i.tags NOT IN (` + placeholders(len(protectedTags)) + `))`
		for _, t := range protectedTags {
			args = append(args, t)
		}
	}
	query += ` ORDER BY i.created_at ASC, i.rowid ASC LIMIT ?`
	args = append(args, limit)

	items, err := queryItems(ctx, r.db, query, args...)
	if err != nil {
		return nil, core.NewStoreError("expired items", err)
	}
	return items, nil
}

func (r *RetentionRepo) DeleteItems(ctx context.Context, ids []string) (int, error) {
	n, err := deleteItems(ctx, r.db, ids)
	if err != nil {
		return 0, core.NewStoreError("delete items", err)
	}
	return n, nil
}

func (r *RetentionRepo) Vacuum(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `VACUUM`); err != nil {
		return core.NewStoreError("vacuum", err)
	}
	return nil
}
