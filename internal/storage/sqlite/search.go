package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/sandevgo/tuskmem/internal/core"
)

const maxQueryTerms = 32

type SearchRepo struct {
	db       *sql.DB
	embedder core.Embedder
	timeout  time.Duration
	now      func() time.Time
}

// NewSearchRepo builds the search side of the store. The embedder may be nil,
// in which case hybrid search reports the backend as unavailable.
func NewSearchRepo(db *sql.DB, embedder core.Embedder, timeout time.Duration) *SearchRepo {
	return &SearchRepo{db: db, embedder: embedder, timeout: timeout, now: time.Now}
}

// EscapeQuery turns free text into an FTS5 expression: every alphanumeric
// token is quoted and the tokens are OR-ed. Returns "" when nothing is searchable.
func EscapeQuery(query string) string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		q := `"` + f + `"`
		if slices.Contains(terms, q) {
			continue
		}
		terms = append(terms, q)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return strings.Join(terms, " OR ")
}

// queryText recovers plain text from an escaped query for embedding.
func queryText(escaped string) string {
	return strings.NewReplacer(`"`, "", " OR ", " ").Replace(escaped)
}

func (r *SearchRepo) LexicalSearch(ctx context.Context, query string, limit int) (core.LexicalResult, error) {
	return r.lexical(ctx, query, limit, core.Filter{})
}

// LexicalSearchFiltered applies the filter in SQL so the limit counts only
// matching items.
func (r *SearchRepo) LexicalSearchFiltered(ctx context.Context, query string, limit int, filter core.Filter) (core.LexicalResult, error) {
	return r.lexical(ctx, query, limit, filter)
}

func (r *SearchRepo) lexical(ctx context.Context, query string, limit int, filter core.Filter) (core.LexicalResult, error) {
	escaped := EscapeQuery(query)
	res := core.LexicalResult{EscapedQuery: escaped}
	if escaped == "" || limit <= 0 {
		return res, nil
	}

	ranked, err := r.ftsCandidates(ctx, escaped, limit, filter)
	if err != nil {
		return res, core.NewStoreError("lexical search", err)
	}

	for _, c := range ranked {
		res.Results = append(res.Results, core.SearchResult{Item: c.item, Score: -c.bm25})
	}
	return res, nil
}

func (r *SearchRepo) HybridSearch(ctx context.Context, escapedQuery string, opts core.HybridOptions) ([]core.SearchResult, error) {
	return r.hybrid(ctx, escapedQuery, opts, core.Filter{})
}

func (r *SearchRepo) HybridSearchFiltered(ctx context.Context, escapedQuery string, opts core.HybridOptions, filter core.Filter) ([]core.SearchResult, error) {
	return r.hybrid(ctx, escapedQuery, opts, filter)
}

type candidate struct {
	item core.StoredItem
	bm25 float64
}

type scored struct {
	item     core.StoredItem
	lexical  float64
	semantic float64
	score    float64
}

func (r *SearchRepo) hybrid(ctx context.Context, escaped string, opts core.HybridOptions, filter core.Filter) ([]core.SearchResult, error) {
	if escaped == "" || opts.TopK <= 0 {
		return nil, nil
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("hybrid search: %w", core.ErrBackendUnavailable)
	}
	if opts.Candidates < opts.TopK {
		opts.Candidates = opts.TopK
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ranked, err := r.ftsCandidates(ctx, escaped, opts.Candidates, filter)
	if err != nil {
		return nil, core.NewStoreError("hybrid search", err)
	}

	pool := make([]scored, 0, len(ranked))
	for rank, c := range ranked {
		pool = append(pool, scored{
			item:    c.item,
			lexical: 1.0 - float64(rank)/float64(len(ranked)+1),
		})
	}

	// No lexical hit: rank recent items on similarity alone
	if len(pool) == 0 {
		recent, err := r.recentItems(ctx, opts.Candidates, filter)
		if err != nil {
			return nil, core.NewStoreError("hybrid search", err)
		}
		for _, it := range recent {
			pool = append(pool, scored{item: it})
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, queryText(escaped))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vectors, err := r.ensureVectors(ctx, pool)
	if err != nil {
		return nil, err
	}

	w := opts.SemanticWeight
	for i := range pool {
		pool[i].semantic = max(0, cosine(queryVec, vectors[pool[i].item.ID]))
		pool[i].score = (1-w)*pool[i].lexical + w*pool[i].semantic
	}

	slices.SortStableFunc(pool, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	if len(pool) > opts.TopK {
		pool = pool[:opts.TopK]
	}

	results := make([]core.SearchResult, len(pool))
	for i, s := range pool {
		results[i] = core.SearchResult{Item: s.item, Score: s.score}
	}
	return results, nil
}

func (r *SearchRepo) ftsCandidates(ctx context.Context, escaped string, limit int, filter core.Filter) ([]candidate, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + itemColumns + `, bm25(items_fts) AS lex_rank
		FROM items_fts
		JOIN items i ON i.id = items_fts.item_id
		WHERE items_fts MATCH ?` + where + `
		ORDER BY lex_rank
		LIMIT ?`
	// Tags are indexed for filtering only; role words must not match them.
	args = append([]any{"text : (" + escaped + ")"}, args...)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fts: %w", err)
	}
	defer rows.Close()

	var out []candidate
	for rows.Next() {
		var c candidate
		item, err := scanItem(rows, &c.bm25)
		if err != nil {
			return nil, err
		}
		c.item = item
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SearchRepo) recentItems(ctx context.Context, limit int, filter core.Filter) ([]core.StoredItem, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + itemColumns + ` FROM items i WHERE 1 = 1` + where +
		` ORDER BY i.created_at DESC LIMIT ?`
	return queryItems(ctx, r.db, query, append(args, limit)...)
}

// ensureVectors loads cached embeddings and computes the missing ones.
func (r *SearchRepo) ensureVectors(ctx context.Context, pool []scored) (map[string][]float32, error) {
	model := r.embedder.Model()
	ids := make([]any, 0, len(pool)+1)
	ids = append(ids, model)
	for _, s := range pool {
		ids = append(ids, s.item.ID)
	}

	vectors := make(map[string][]float32, len(pool))
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id, vector FROM item_embeddings WHERE model = ? AND item_id IN (`+placeholders(len(pool))+`)`,
		ids...,
	)
	if err != nil {
		return nil, core.NewStoreError("load embeddings", err)
	}
	for rows.Next() {
		var (
			id   string
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return nil, core.NewStoreError("load embeddings", err)
		}
		vec, err := deserializeVector(blob)
		if err != nil {
			continue
		}
		vectors[id] = vec
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, core.NewStoreError("load embeddings", err)
	}

	for _, s := range pool {
		if _, ok := vectors[s.item.ID]; ok {
			continue
		}
		vec, err := r.embedder.Embed(ctx, s.item.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed item %s: %w", s.item.ID, err)
		}
		if err := r.saveVector(ctx, s.item.ID, model, vec); err != nil {
			return nil, err
		}
		vectors[s.item.ID] = vec
	}
	return vectors, nil
}

func (r *SearchRepo) saveVector(ctx context.Context, itemID, model string, vec []float32) error {
	blob, err := serializeVector(vec)
	if err != nil {
		return core.NewStoreError("save embedding", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO item_embeddings (item_id, model, dims, vector, created_at) VALUES (?, ?, ?, ?, ?)`,
		itemID, model, len(vec), blob, r.now().UnixMilli(),
	)
	if err != nil {
		return core.NewStoreError("save embedding", err)
	}
	return nil
}

func filterClause(f core.Filter) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	if f.EntityID != "" {
		sb.WriteString(" AND i.entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.ProcessID != "" {
		sb.WriteString(" AND i.process_id = ?")
		args = append(args, f.ProcessID)
	}
	if f.SessionID != "" {
		sb.WriteString(" AND i.session_id = ?")
		args = append(args, f.SessionID)
	}
	return sb.String(), args
}
