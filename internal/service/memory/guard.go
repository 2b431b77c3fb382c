package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const (
	maxProbeTimeout   = 800 * time.Millisecond
	degradedWarnEvery = time.Hour
)

// Guard runs hybrid search only when the semantic backend answers a quick
// probe, and falls back to lexical results otherwise.
type Guard struct {
	search       core.SearchRepository
	prober       core.HealthProber
	cfg          config.SearchConfig
	probeTimeout time.Duration
	warnEvery    time.Duration
	now          func() time.Time

	mu       sync.Mutex
	lastWarn time.Time
}

// NewGuard builds a guard. A nil prober means the backend is never reachable.
func NewGuard(search core.SearchRepository, prober core.HealthProber, cfg config.SearchConfig, backendTimeout time.Duration) *Guard {
	probe := maxProbeTimeout
	if backendTimeout > 0 && backendTimeout < probe {
		probe = backendTimeout
	}
	return &Guard{
		search:       search,
		prober:       prober,
		cfg:          cfg,
		probeTimeout: probe,
		warnEvery:    degradedWarnEvery,
		now:          time.Now,
	}
}

type SearchRequest struct {
	Query  string
	Limit  int
	Mode   string // empty uses the configured mode
	Filter core.Filter
}

// Search uses the configured mode and attribution filter.
func (g *Guard) Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	return g.SearchWith(ctx, SearchRequest{
		Query:  query,
		Limit:  limit,
		Filter: core.Filter{EntityID: g.cfg.EntityID, ProcessID: g.cfg.ProcessID},
	})
}

func (g *Guard) SearchWith(ctx context.Context, req SearchRequest) ([]core.SearchResult, error) {
	var lex core.LexicalResult
	var err error
	if req.Filter.IsZero() {
		lex, err = g.search.LexicalSearch(ctx, req.Query, req.Limit)
	} else {
		lex, err = g.search.LexicalSearchFiltered(ctx, req.Query, req.Limit, req.Filter)
	}
	if err != nil {
		return nil, err
	}
	fallback := lex.Results

	mode := req.Mode
	if mode == "" {
		mode = g.cfg.Mode
	}
	if mode == config.SearchModeLexical || lex.EscapedQuery == "" {
		return fallback, nil
	}

	if err := g.probe(ctx); err != nil {
		g.warnDegraded(ctx, err)
		return fallback, nil
	}

	opts := core.HybridOptions{
		TopK:           req.Limit,
		Candidates:     max(g.cfg.Candidates, req.Limit),
		SemanticWeight: g.cfg.SemanticWeight,
	}

	var results []core.SearchResult
	if req.Filter.IsZero() {
		results, err = g.search.HybridSearch(ctx, lex.EscapedQuery, opts)
	} else {
		results, err = g.search.HybridSearchFiltered(ctx, lex.EscapedQuery, opts, req.Filter)
	}
	if err != nil {
		if errors.Is(err, core.ErrBackendUnavailable) {
			g.warnDegraded(ctx, err)
			return fallback, nil
		}
		return nil, err
	}
	return results, nil
}

// Reset forgets when the last degradation warning was emitted.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastWarn = time.Time{}
}

func (g *Guard) probe(ctx context.Context) error {
	if g.prober == nil {
		return core.ErrBackendUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, g.probeTimeout)
	defer cancel()
	return g.prober.Health(ctx)
}

// warnDegraded logs at most one warning per interval and reports whether it did.
func (g *Guard) warnDegraded(ctx context.Context, cause error) bool {
	g.mu.Lock()
	now := g.now()
	if !g.lastWarn.IsZero() && now.Sub(g.lastWarn) < g.warnEvery {
		g.mu.Unlock()
		return false
	}
	g.lastWarn = now
	g.mu.Unlock()

	log.FromCtx(ctx).Warn().Err(cause).
		Dur("suppress_for", g.warnEvery).
		Msg("semantic backend unavailable, falling back to lexical search")
	return true
}
