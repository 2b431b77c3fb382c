package memory

import (
	"context"
	"slices"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const (
	defaultScanLimit = 1000
	gcSampleSize     = 5
)

type Collector struct {
	repo core.RetentionRepository
	cfg  config.RetentionConfig
	now  func() time.Time
}

func NewCollector(repo core.RetentionRepository, cfg config.RetentionConfig) *Collector {
	return &Collector{repo: repo, cfg: cfg, now: time.Now}
}

// Policy resolves a request against the configured defaults. Call-time
// protected tags add to the configured ones.
func (c *Collector) Policy(req core.GCRequest) (core.RetentionPolicy, error) {
	if req.RetentionDays < 0 {
		return core.RetentionPolicy{}, core.NewValidationError("retention days", "must be positive")
	}
	if req.ScanLimit < 0 {
		return core.RetentionPolicy{}, core.NewValidationError("scan limit", "must be positive")
	}

	days := req.RetentionDays
	if days == 0 {
		days = c.cfg.Days
	}

	protected := slices.Clone(c.cfg.ProtectedTags)
	for _, t := range req.ProtectedTags {
		if t != "" && !slices.Contains(protected, t) {
			protected = append(protected, t)
		}
	}

	return core.RetentionPolicy{RetentionDays: days, ProtectedTags: protected}, nil
}

// Run selects items past the retention horizon, oldest first, and deletes
// them unless req.DryRun is set.
func (c *Collector) Run(ctx context.Context, req core.GCRequest) (core.GCResult, error) {
	logger := log.FromCtx(ctx)

	policy, err := c.Policy(req)
	if err != nil {
		return core.GCResult{}, err
	}
	if policy.RetentionDays <= 0 {
		logger.Debug().Msg("gc skipped: no retention horizon")
		return core.GCResult{Skipped: true, DryRun: req.DryRun}, nil
	}

	scan := req.ScanLimit
	if scan == 0 {
		scan = c.cfg.ScanLimit
	}
	if scan <= 0 {
		scan = defaultScanLimit
	}

	now := c.now()
	res := core.GCResult{DryRun: req.DryRun, Cutoff: policy.Cutoff(now)}

	selected, err := c.repo.ExpiredItems(ctx, res.Cutoff, policy.ProtectedTags, scan)
	if err != nil {
		return core.GCResult{}, err
	}

	eligible := make([]core.StoredItem, 0, len(selected))
	for _, it := range selected {
		if policy.Eligible(it, now) {
			eligible = append(eligible, it)
		}
	}

	res.Candidates = len(eligible)
	res.Sample = eligible[:min(gcSampleSize, len(eligible))]
	if req.DryRun || len(eligible) == 0 {
		return res, nil
	}

	ids := make([]string, len(eligible))
	for i, it := range eligible {
		ids[i] = it.ID
	}

	res.Deleted, err = c.repo.DeleteItems(ctx, ids)
	if err != nil {
		return core.GCResult{}, err
	}

	if err := c.repo.Vacuum(ctx); err != nil {
		logger.Debug().Err(err).Msg("vacuum after gc failed")
	}

	logger.Info().
		Int("deleted", res.Deleted).
		Int("days", policy.RetentionDays).
		Strs("protected", policy.ProtectedTags).
		Msg("gc completed")
	return res, nil
}
