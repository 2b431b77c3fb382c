package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gcNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) time.Time {
	return gcNow.AddDate(0, 0, -d)
}

func newCollector(repo core.RetentionRepository, cfg config.RetentionConfig) *Collector {
	c := NewCollector(repo, cfg)
	c.now = fixedClock(gcNow)
	return c
}

func TestCollector_SkippedWithoutHorizon(t *testing.T) {
	repo := &fakeRetention{expired: []core.StoredItem{{ID: "a", CreatedAt: daysAgo(400)}}}

	res, err := newCollector(repo, config.RetentionConfig{}).Run(context.Background(), core.GCRequest{})

	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, repo.deleted)
	assert.False(t, repo.vacuumed)
}

func TestCollector_Validation(t *testing.T) {
	c := newCollector(&fakeRetention{}, config.RetentionConfig{Days: 30})

	var verr *core.ValidationError
	_, err := c.Run(context.Background(), core.GCRequest{RetentionDays: -1})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "retention days", verr.Field)

	_, err = c.Run(context.Background(), core.GCRequest{ScanLimit: -5})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "scan limit", verr.Field)
}

func TestCollector_PolicyUnionsProtectedTags(t *testing.T) {
	c := newCollector(&fakeRetention{}, config.RetentionConfig{Days: 30, ProtectedTags: []string{"personal"}})

	policy, err := c.Policy(core.GCRequest{ProtectedTags: []string{"work", "personal", ""}})

	require.NoError(t, err)
	assert.Equal(t, 30, policy.RetentionDays)
	assert.Equal(t, []string{"personal", "work"}, policy.ProtectedTags)

	policy, err = c.Policy(core.GCRequest{RetentionDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, policy.RetentionDays)
	assert.Equal(t, []string{"personal"}, policy.ProtectedTags)
}

func TestCollector_RechecksEligibility(t *testing.T) {
	repo := &fakeRetention{expired: []core.StoredItem{
		{ID: "old", CreatedAt: daysAgo(40)},
		{ID: "young", CreatedAt: daysAgo(2)},
		{ID: "kept", Tags: "personal", CreatedAt: daysAgo(90)},
	}}
	c := newCollector(repo, config.RetentionConfig{Days: 30, ProtectedTags: []string{"personal"}})

	res, err := c.Run(context.Background(), core.GCRequest{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []string{"old"}, repo.deleted)
	assert.Equal(t, daysAgo(30), res.Cutoff)
	assert.True(t, repo.vacuumed)
}

func TestCollector_VacuumFailureIsNotFatal(t *testing.T) {
	repo := &fakeRetention{
		expired:   []core.StoredItem{{ID: "old", CreatedAt: daysAgo(40)}},
		vacuumErr: errors.New("database is locked"),
	}

	res, err := newCollector(repo, config.RetentionConfig{Days: 30}).Run(context.Background(), core.GCRequest{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
}

func TestCollector_DeleteFailurePropagates(t *testing.T) {
	repo := &fakeRetention{
		expired:   []core.StoredItem{{ID: "old", CreatedAt: daysAgo(40)}},
		deleteErr: core.NewStoreError("delete items", errors.New("disk I/O error")),
	}

	_, err := newCollector(repo, config.RetentionConfig{Days: 30}).Run(context.Background(), core.GCRequest{})

	assert.Error(t, err)
	assert.False(t, repo.vacuumed)
}

func TestCollector_SampleIsCapped(t *testing.T) {
	repo := &fakeRetention{}
	for i := range 8 {
		repo.expired = append(repo.expired, core.StoredItem{ID: string(rune('a' + i)), CreatedAt: daysAgo(100 - i)})
	}

	res, err := newCollector(repo, config.RetentionConfig{Days: 30}).Run(context.Background(), core.GCRequest{DryRun: true})

	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 8, res.Candidates)
	assert.Len(t, res.Sample, gcSampleSize)
	assert.Equal(t, "a", res.Sample[0].ID)
	assert.Empty(t, repo.deleted)
}

func seedRetention(t *testing.T, store *test.Store) {
	t.Helper()
	ctx := context.Background()
	for _, it := range []core.StoredItem{
		{Text: "anniversary is in october", Tags: "personal", CreatedAt: daysAgo(40)},
		{Text: "quarterly report is due", Tags: "work", CreatedAt: daysAgo(40)},
		{Text: "fresh work note", Tags: "work", CreatedAt: daysAgo(3)},
	} {
		_, err := store.Items.Insert(ctx, it)
		require.NoError(t, err)
	}
}

func TestCollector_ProtectedTagSurvives(t *testing.T) {
	store := test.NewStore(t)
	seedRetention(t, store)
	ctx := context.Background()
	c := newCollector(store.Retention, config.RetentionConfig{Days: 30, ProtectedTags: []string{"personal"}})

	dry, err := c.Run(ctx, core.GCRequest{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, dry.Candidates)
	require.Len(t, dry.Sample, 1)
	assert.Equal(t, "quarterly report is due", dry.Sample[0].Text)

	stats, err := store.Items.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Items)

	live, err := c.Run(ctx, core.GCRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, live.Deleted)

	stats, err = store.Items.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Items)
}

func TestCollector_ProtectedNeverDeletedAtAnyHorizon(t *testing.T) {
	store := test.NewStore(t)
	seedRetention(t, store)
	ctx := context.Background()
	c := newCollector(store.Retention, config.RetentionConfig{ProtectedTags: []string{"personal"}})

	for _, days := range []int{365, 30, 7, 1} {
		_, err := c.Run(ctx, core.GCRequest{RetentionDays: days})
		require.NoError(t, err)
	}

	stats, err := store.Items.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Items)

	res, err := c.Run(ctx, core.GCRequest{RetentionDays: 1, DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
}
