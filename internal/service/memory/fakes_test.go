package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
)

// fakeItems is an in-memory ItemsRepository with injectable failures.
type fakeItems struct {
	mu      sync.Mutex
	items   []core.StoredItem
	hashes  []string
	seq     int
	hashErr error

	insertFn  func(item core.StoredItem) error
	sessionFn func(sessionID string) ([]core.StoredItem, error)

	hashCalls int
}

func (f *fakeItems) Insert(ctx context.Context, item core.StoredItem) (core.StoredItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertFn != nil {
		if err := f.insertFn(item); err != nil {
			return core.StoredItem{}, err
		}
	}
	f.seq++
	item.ID = fmt.Sprintf("item-%d", f.seq)
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeItems) Get(ctx context.Context, id string) (core.StoredItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id {
			return it, nil
		}
	}
	return core.StoredItem{}, core.NewStoreError("get", core.ErrNotFound)
}

func (f *fakeItems) Forget(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.ID == id {
			f.items = slices.Delete(f.items, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeItems) RecentHashes(ctx context.Context, since time.Time, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashCalls++
	if f.hashErr != nil {
		return nil, f.hashErr
	}
	out := slices.Clone(f.hashes)
	for _, it := range f.items {
		if !it.CreatedAt.Before(since) {
			out = append(out, it.ContentHash)
		}
	}
	return out, nil
}

func (f *fakeItems) SessionItems(ctx context.Context, sessionID string, tags []string, limit int) ([]core.StoredItem, error) {
	if f.sessionFn != nil {
		return f.sessionFn(sessionID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.StoredItem
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		it := f.items[i]
		if it.SessionID == sessionID && (len(tags) == 0 || slices.Contains(tags, it.Tags)) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (f *fakeItems) Stats(ctx context.Context) (core.StoreStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return core.StoreStats{Items: len(f.items)}, nil
}

func (f *fakeItems) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.items))
	for i, it := range f.items {
		out[i] = it.Text
	}
	return out
}

// fakeSearch records which search path the guard took.
type fakeSearch struct {
	lexical  []core.SearchResult
	escaped  string
	lexErr   error
	hybrid   []core.SearchResult
	hybErr   error
	calls    []string
	lastOpts core.HybridOptions
	lastF    core.Filter
}

func (f *fakeSearch) LexicalSearch(ctx context.Context, query string, limit int) (core.LexicalResult, error) {
	f.calls = append(f.calls, "lexical")
	if f.lexErr != nil {
		return core.LexicalResult{}, f.lexErr
	}
	escaped := f.escaped
	if escaped == "" && query != "" {
		escaped = `"` + query + `"`
	}
	return core.LexicalResult{Results: limitResults(f.lexical, limit), EscapedQuery: escaped}, nil
}

func (f *fakeSearch) LexicalSearchFiltered(ctx context.Context, query string, limit int, filter core.Filter) (core.LexicalResult, error) {
	f.calls = append(f.calls, "lexical-filtered")
	f.lastF = filter
	if f.lexErr != nil {
		return core.LexicalResult{}, f.lexErr
	}
	escaped := f.escaped
	if escaped == "" && query != "" {
		escaped = `"` + query + `"`
	}
	var matched []core.SearchResult
	for _, r := range f.lexical {
		if filter.EntityID != "" && r.Item.EntityID != filter.EntityID {
			continue
		}
		if filter.ProcessID != "" && r.Item.ProcessID != filter.ProcessID {
			continue
		}
		if filter.SessionID != "" && r.Item.SessionID != filter.SessionID {
			continue
		}
		matched = append(matched, r)
	}
	return core.LexicalResult{Results: limitResults(matched, limit), EscapedQuery: escaped}, nil
}

func (f *fakeSearch) HybridSearch(ctx context.Context, escapedQuery string, opts core.HybridOptions) ([]core.SearchResult, error) {
	f.calls = append(f.calls, "hybrid")
	f.lastOpts = opts
	return f.hybrid, f.hybErr
}

func (f *fakeSearch) HybridSearchFiltered(ctx context.Context, escapedQuery string, opts core.HybridOptions, filter core.Filter) ([]core.SearchResult, error) {
	f.calls = append(f.calls, "filtered")
	f.lastOpts = opts
	f.lastF = filter
	return f.hybrid, f.hybErr
}

type fakeProber struct {
	healthFn func(ctx context.Context) error
	calls    int
}

func (f *fakeProber) Health(ctx context.Context) error {
	f.calls++
	if f.healthFn != nil {
		return f.healthFn(ctx)
	}
	return nil
}

type fakeSearcher struct {
	searchFn func(query string, limit int) ([]core.SearchResult, error)
	queries  []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.searchFn != nil {
		return f.searchFn(query, limit)
	}
	return nil, nil
}

type fakeRetention struct {
	expired   []core.StoredItem
	deleted   []string
	deleteErr error
	vacuumErr error
	vacuumed  bool
	lastTags  []string
}

func (f *fakeRetention) ExpiredItems(ctx context.Context, before time.Time, protectedTags []string, limit int) ([]core.StoredItem, error) {
	f.lastTags = protectedTags
	return f.expired, nil
}

func (f *fakeRetention) DeleteItems(ctx context.Context, ids []string) (int, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	return len(ids), nil
}

func (f *fakeRetention) Vacuum(ctx context.Context) error {
	f.vacuumed = true
	return f.vacuumErr
}

func textMsg(role, text string) core.RawMessage {
	return core.RawMessage{Role: role, Content: core.TextContent(text)}
}

func testCaptureConfig() config.CaptureConfig {
	return config.Default().Capture
}

func testRecallConfig() config.RecallConfig {
	return config.Default().Recall
}

// logCtx returns a context whose logger writes synchronously into buf.
func logCtx(buf *bytes.Buffer) context.Context {
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)
	return logger.WithContext(context.Background())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func limitResults(results []core.SearchResult, limit int) []core.SearchResult {
	if limit >= 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
