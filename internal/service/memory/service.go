package memory

import (
	"context"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const defaultSearchLimit = 5

// Service ties capture, recall, search and retention together behind
// the hooks a host runtime calls.
type Service struct {
	cfg       *config.Config
	items     core.ItemsRepository
	capturer  *Capturer
	recaller  *Recaller
	guard     *Guard
	collector *Collector
	now       func() time.Time
}

func NewService(
	cfg *config.Config,
	items core.ItemsRepository,
	search core.SearchRepository,
	retention core.RetentionRepository,
	prober core.HealthProber,
) *Service {
	guard := NewGuard(search, prober, cfg.Search, cfg.Backend.Timeout)
	return &Service{
		cfg:       cfg,
		items:     items,
		capturer:  NewCapturer(items, cfg.Capture, NewAttribution(cfg.App)),
		recaller:  NewRecaller(items, guard, cfg.Recall),
		guard:     guard,
		collector: NewCollector(retention, cfg.Retention),
		now:       time.Now,
	}
}

// BeforeTurn returns the context to prepend to the agent input, or "".
func (s *Service) BeforeTurn(ctx context.Context, event core.BeforeTurnEvent) (out string) {
	defer s.recoverHook(ctx, "before_turn", func() { out = "" })

	if !s.cfg.Recall.Enabled {
		return ""
	}
	return s.recaller.Recall(ctx, event.Prompt, event.SessionKey)
}

// AfterTurn captures a completed turn and returns the stored count.
func (s *Service) AfterTurn(ctx context.Context, event core.TurnEvent) (stored int) {
	defer s.recoverHook(ctx, "after_turn", func() { stored = 0 })

	if !s.cfg.Capture.Enabled {
		return 0
	}
	if !event.Success {
		log.FromCtx(ctx).Debug().Str("session", event.SessionKey).Msg("turn failed, nothing captured")
		return 0
	}
	return s.capturer.Capture(ctx, event)
}

func (s *Service) recoverHook(ctx context.Context, hook string, reset func()) {
	if r := recover(); r != nil {
		log.FromCtx(ctx).Error().Interface("panic", r).Str("hook", hook).Msg("memory hook recovered")
		reset()
	}
}

type RememberRequest struct {
	Text      string
	Tag       string
	SessionID string
	EntityID  string
}

// Remember stores text on explicit request. Duplicate reports an existing
// item with the same content inside the dedupe window.
func (s *Service) Remember(ctx context.Context, req RememberRequest) (item core.StoredItem, duplicate bool, err error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return core.StoredItem{}, false, core.NewValidationError("text", "must not be empty")
	}

	now := s.now()
	index, err := LoadDedupeIndex(ctx, s.items, now, s.cfg.Capture.DedupeWindow, s.cfg.Capture.DedupeMaxCheck)
	if err != nil {
		return core.StoredItem{}, false, err
	}

	hash := ContentHash(text)
	if index.Seen(hash) {
		return core.StoredItem{}, true, nil
	}

	attr := NewAttribution(s.cfg.App)
	entity := req.EntityID
	if entity == "" {
		entity = attr.UserEntityID
	}

	item, err = s.items.Insert(ctx, core.StoredItem{
		Text:        clip(text, s.cfg.Capture.MaxChars),
		Tags:        req.Tag,
		Source:      SourceManual,
		ContentHash: hash,
		EntityID:    entity,
		ProcessID:   attr.ProcessID,
		SessionID:   req.SessionID,
		CreatedAt:   now,
		Meta: core.ItemMeta{
			SessionKey:  req.SessionID,
			Timestamp:   now.UnixMilli(),
			ContentHash: hash,
		},
	})
	return item, false, err
}

// Search validates a tool-style search request and runs it through the guard.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]core.SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, core.NewValidationError("query", "must not be empty")
	}
	switch req.Mode {
	case "", config.SearchModeHybrid, config.SearchModeLexical:
	default:
		return nil, core.NewValidationError("mode", "must be hybrid or lexical")
	}
	if req.Limit < 0 {
		return nil, core.NewValidationError("limit", "must be positive")
	}
	if req.Limit == 0 {
		req.Limit = defaultSearchLimit
	}
	return s.guard.SearchWith(ctx, req)
}

func (s *Service) Forget(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, core.NewValidationError("id", "must not be empty")
	}
	return s.items.Forget(ctx, id)
}

func (s *Service) GC(ctx context.Context, req core.GCRequest) (core.GCResult, error) {
	return s.collector.Run(ctx, req)
}

func (s *Service) Stats(ctx context.Context) (core.StoreStats, error) {
	return s.items.Stats(ctx)
}

var _ core.Memory = (*Service)(nil)
