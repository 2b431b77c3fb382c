package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const (
	SourceCapture = "capture"
	SourceManual  = "manual"
)

type captureStore interface {
	hashSource
	Insert(ctx context.Context, item core.StoredItem) (core.StoredItem, error)
}

// Attribution decides the entity and process ids written on new items.
type Attribution struct {
	ProcessID     string
	UserEntityID  string
	AgentEntityID string
}

func NewAttribution(cfg config.AppConfig) Attribution {
	return Attribution{
		ProcessID:     cfg.ProcessID,
		UserEntityID:  cfg.UserEntityID,
		AgentEntityID: cfg.AgentEntityID,
	}
}

func (a Attribution) EntityFor(role core.Role) string {
	if role == core.RoleAssistant {
		return a.AgentEntityID
	}
	return a.UserEntityID
}

type Capturer struct {
	store captureStore
	cfg   config.CaptureConfig
	attr  Attribution
	now   func() time.Time
}

func NewCapturer(store captureStore, cfg config.CaptureConfig, attr Attribution) *Capturer {
	return &Capturer{store: store, cfg: cfg, attr: attr, now: time.Now}
}

// Capture persists the capture-worthy messages of a completed turn and
// returns how many were stored. Errors are logged, never returned.
func (c *Capturer) Capture(ctx context.Context, event core.TurnEvent) int {
	logger := log.FromCtx(ctx)

	stored, err := c.capture(ctx, event)
	if err != nil {
		logger.Warn().Err(err).Int("stored", stored).Str("session", event.SessionKey).Msg("capture incomplete")
		return stored
	}

	if stored > 0 {
		logger.Debug().Int("stored", stored).Str("session", event.SessionKey).Msg("captured turn")
	}
	return stored
}

func (c *Capturer) capture(ctx context.Context, event core.TurnEvent) (int, error) {
	candidates := Sanitize(core.ExtractMessages(event.Messages))
	if len(candidates) > c.cfg.MaxPerTurn {
		candidates = candidates[:max(c.cfg.MaxPerTurn, 0)]
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	now := c.now()
	index, err := LoadDedupeIndex(ctx, c.store, now, c.cfg.DedupeWindow, c.cfg.DedupeMaxCheck)
	if err != nil {
		return 0, fmt.Errorf("failed to load dedupe window: %w", err)
	}

	processID := c.attr.ProcessID
	if event.AgentID != "" {
		processID = event.AgentID
	}

	var (
		stored int
		errs   []error
	)
	for _, msg := range candidates {
		if ShouldSkip(msg.Text, c.cfg.MinChars) {
			continue
		}

		hash := ContentHash(msg.Text)
		if index.Seen(hash) {
			continue
		}

		item := core.StoredItem{
			Text:        clip(strings.TrimSpace(msg.Text), c.cfg.MaxChars),
			Tags:        string(msg.Role),
			Source:      SourceCapture,
			ContentHash: hash,
			EntityID:    c.attr.EntityFor(msg.Role),
			ProcessID:   processID,
			SessionID:   event.SessionKey,
			CreatedAt:   now,
			Meta: core.ItemMeta{
				Role:        msg.Role,
				SessionKey:  event.SessionKey,
				Channel:     event.Channel,
				Timestamp:   now.UnixMilli(),
				ContentHash: hash,
			},
		}

		if _, err := c.store.Insert(ctx, item); err != nil {
			errs = append(errs, err)
			continue
		}
		// Only stored hashes suppress later copies
		index.Add(hash)
		stored++
	}

	if len(errs) > 0 {
		return stored, &core.PartialFailure{Stored: stored, Failed: len(errs), Errs: errs}
	}
	return stored, nil
}
