package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/providers/rag"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
)

// app holds everything a command needs. Close releases the store.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	embedder *rag.Embedder
	memory   *memory.Service
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	if err := config.LoadEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return config.Parse()
}

func newApp(ctx context.Context) (*app, error) {
	// 1. Configuration
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Storage
	db, err := sqlite.NewDB(ctx, cfg.App.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 3. Semantic backend
	embedder := rag.NewEmbedder(cfg.Backend)

	// 4. Memory service
	svc := memory.NewService(
		cfg,
		sqlite.NewItemsRepo(db),
		sqlite.NewSearchRepo(db, embedder, cfg.Backend.Timeout),
		sqlite.NewRetentionRepo(db),
		embedder,
	)

	return &app{cfg: cfg, db: db, embedder: embedder, memory: svc}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// withApp sets up logging and the app around fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	ctx, flushLog := setupLogger(ctx)
	defer flushLog()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
