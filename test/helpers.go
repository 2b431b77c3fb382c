package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
)

// Store bundles the SQLite repositories over one temp database.
type Store struct {
	DB        *sql.DB
	Items     *sqlite.ItemsRepo
	Retention *sqlite.RetentionRepo
	Path      string
}

func NewStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")

	db, err := sqlite.NewDB(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Store{
		DB:        db,
		Items:     sqlite.NewItemsRepo(db),
		Retention: sqlite.NewRetentionRepo(db),
		Path:      path,
	}
}

// Vocabulary is the fixed axis set used by EmbeddingServer vectors.
var Vocabulary = []string{"coffee", "tea", "editor", "dark", "mode", "music", "cat"}

// KeywordVector embeds text as keyword counts over Vocabulary.
func KeywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(Vocabulary)+1)
	for i, w := range Vocabulary {
		vec[i] = float32(strings.Count(lower, w))
	}
	vec[len(Vocabulary)] = 0.01
	return vec
}

// EmbeddingServer fakes an Ollama embedding backend.
type EmbeddingServer struct {
	*httptest.Server
	healthy     atomic.Bool
	EmbedCalls  atomic.Int32
	HealthCalls atomic.Int32
}

func NewEmbeddingServer(t *testing.T) *EmbeddingServer {
	t.Helper()
	s := &EmbeddingServer{}
	s.healthy.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		s.HealthCalls.Add(1)
		if !s.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		s.EmbedCalls.Add(1)
		if !s.healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{KeywordVector(req.Input)},
		})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *EmbeddingServer) SetHealthy(ok bool) {
	s.healthy.Store(ok)
}
