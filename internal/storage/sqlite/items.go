package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/tuskmem/internal/core"
)

// itemColumns expects the items table aliased as i.
const itemColumns = `i.id, i.text, i.tags, i.source, i.meta,
	COALESCE(i.content_hash, json_extract(i.meta, '$.contentHash')),
	i.entity_id, i.process_id, i.session_id, i.created_at`

type ItemsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewItemsRepo(db *sql.DB) *ItemsRepo {
	return &ItemsRepo{db: db, now: time.Now}
}

func (r *ItemsRepo) Insert(ctx context.Context, item core.StoredItem) (core.StoredItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.now()
	}
	if item.ContentHash == "" {
		item.ContentHash = item.Meta.ContentHash
	}

	meta, err := json.Marshal(item.Meta)
	if err != nil {
		return core.StoredItem{}, core.NewStoreError("insert", fmt.Errorf("failed to marshal meta: %w", err))
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO items (id, text, tags, source, meta, content_hash, entity_id, process_id, session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Text, nullString(item.Tags), nullString(item.Source), string(meta),
		nullString(item.ContentHash), nullString(item.EntityID), nullString(item.ProcessID),
		nullString(item.SessionID), item.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return core.StoredItem{}, core.NewStoreError("insert", fmt.Errorf("failed to insert item: %w", err))
	}

	item.CreatedAt = time.UnixMilli(item.CreatedAt.UnixMilli())
	return item, nil
}

func (r *ItemsRepo) Get(ctx context.Context, id string) (core.StoredItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StoredItem{}, core.NewStoreError("get", core.ErrNotFound)
	}
	if err != nil {
		return core.StoredItem{}, core.NewStoreError("get", err)
	}
	return item, nil
}

// Forget deletes one item together with its embedding.
func (r *ItemsRepo) Forget(ctx context.Context, id string) (bool, error) {
	n, err := deleteItems(ctx, r.db, []string{id})
	if err != nil {
		return false, core.NewStoreError("forget", err)
	}
	return n > 0, nil
}

// RecentHashes returns the content hashes among the newest limit items
// created at or after since.
func (r *ItemsRepo) RecentHashes(ctx context.Context, since time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT COALESCE(content_hash, json_extract(meta, '$.contentHash'))
		 FROM items
		 WHERE created_at >= ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		since.UnixMilli(), limit,
	)
	if err != nil {
		return nil, core.NewStoreError("recent hashes", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h sql.NullString
		if err := rows.Scan(&h); err != nil {
			return nil, core.NewStoreError("recent hashes", err)
		}
		if h.Valid && h.String != "" {
			hashes = append(hashes, h.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("recent hashes", err)
	}
	return hashes, nil
}

// SessionItems returns the newest items of a session, newest first.
func (r *ItemsRepo) SessionItems(ctx context.Context, sessionID string, tags []string, limit int) ([]core.StoredItem, error) {
	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.session_id = ?`
	args := []any{sessionID}
	if len(tags) > 0 {
		query += ` AND i.tags IN (` + placeholders(len(tags)) + `)`
		for _, t := range tags {
			args = append(args, t)
		}
	}
	query += ` ORDER BY i.created_at DESC, i.rowid DESC LIMIT ?`
	args = append(args, limit)

	items, err := queryItems(ctx, r.db, query, args...)
	if err != nil {
		return nil, core.NewStoreError("session items", err)
	}
	return items, nil
}

func (r *ItemsRepo) Stats(ctx context.Context) (core.StoreStats, error) {
	var (
		stats          core.StoreStats
		oldest, newest sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM items`).
		Scan(&stats.Items, &oldest, &newest)
	if err != nil {
		return stats, core.NewStoreError("stats", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_embeddings`).Scan(&stats.Embeddings); err != nil {
		return stats, core.NewStoreError("stats", err)
	}
	if oldest.Valid {
		stats.Oldest = time.UnixMilli(oldest.Int64)
	}
	if newest.Valid {
		stats.Newest = time.UnixMilli(newest.Int64)
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner, extra ...any) (core.StoredItem, error) {
	var (
		item                                  core.StoredItem
		tags, source, hash, entity, proc, ses sql.NullString
		meta                                  string
		createdAt                             int64
	)

	dest := []any{&item.ID, &item.Text, &tags, &source, &meta, &hash, &entity, &proc, &ses, &createdAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return core.StoredItem{}, err
	}

	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &item.Meta); err != nil {
			return core.StoredItem{}, fmt.Errorf("failed to unmarshal meta of %s: %w", item.ID, err)
		}
	}
	item.Tags = tags.String
	item.Source = source.String
	item.ContentHash = hash.String
	item.EntityID = entity.String
	item.ProcessID = proc.String
	item.SessionID = ses.String
	item.CreatedAt = time.UnixMilli(createdAt)
	return item, nil
}

func queryItems(ctx context.Context, db *sql.DB, query string, args ...any) ([]core.StoredItem, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []core.StoredItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// deleteItems removes items and their embeddings in one transaction.
func deleteItems(ctx context.Context, db *sql.DB, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	deleted := 0
	for _, chunk := range chunks(ids, 500) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		in := placeholders(len(chunk))

		if _, err := tx.ExecContext(ctx, `DELETE FROM item_embeddings WHERE item_id IN (`+in+`)`, args...); err != nil {
			return 0, fmt.Errorf("failed to delete embeddings: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id IN (`+in+`)`, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to delete items: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return deleted, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunks(ids []string, size int) [][]string {
	var out [][]string
	for size < len(ids) {
		ids, out = ids[size:], append(out, ids[:size])
	}
	return append(out, ids)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
