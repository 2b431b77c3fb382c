package core

import (
	"context"
	"time"
)

type ItemsRepository interface {
	Insert(ctx context.Context, item StoredItem) (StoredItem, error)
	Get(ctx context.Context, id string) (StoredItem, error)
	Forget(ctx context.Context, id string) (bool, error)
	RecentHashes(ctx context.Context, since time.Time, limit int) ([]string, error)
	SessionItems(ctx context.Context, sessionID string, tags []string, limit int) ([]StoredItem, error)
	Stats(ctx context.Context) (StoreStats, error)
}

type SearchRepository interface {
	LexicalSearch(ctx context.Context, query string, limit int) (LexicalResult, error)
	LexicalSearchFiltered(ctx context.Context, query string, limit int, filter Filter) (LexicalResult, error)
	HybridSearch(ctx context.Context, escapedQuery string, opts HybridOptions) ([]SearchResult, error)
	HybridSearchFiltered(ctx context.Context, escapedQuery string, opts HybridOptions, filter Filter) ([]SearchResult, error)
}

type RetentionRepository interface {
	ExpiredItems(ctx context.Context, before time.Time, protectedTags []string, limit int) ([]StoredItem, error)
	DeleteItems(ctx context.Context, ids []string) (int, error)
	Vacuum(ctx context.Context) error
}
