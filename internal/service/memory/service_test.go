package memory

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceDeps struct {
	items     *fakeItems
	search    *fakeSearch
	retention *fakeRetention
}

func newTestService(t *testing.T, mutate func(*config.Config)) (*Service, serviceDeps) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	deps := serviceDeps{items: &fakeItems{}, search: &fakeSearch{}, retention: &fakeRetention{}}
	svc := NewService(cfg, deps.items, deps.search, deps.retention, &fakeProber{})
	now := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)
	svc.capturer.now = fixedClock(now)
	return svc, deps
}

func TestService_AfterTurnSkipsFailedTurns(t *testing.T) {
	svc, deps := newTestService(t, nil)

	stored := svc.AfterTurn(context.Background(), core.TurnEvent{
		Success:  false,
		Messages: []core.RawMessage{textMsg("user", "please remember my flight is on tuesday")},
	})

	assert.Zero(t, stored)
	assert.Empty(t, deps.items.items)
}

func TestService_AfterTurnCaptures(t *testing.T) {
	svc, deps := newTestService(t, nil)

	stored := svc.AfterTurn(context.Background(), core.TurnEvent{
		Success:    true,
		SessionKey: "s1",
		Messages:   []core.RawMessage{textMsg("user", "please remember my flight is on tuesday")},
	})

	assert.Equal(t, 1, stored)
	assert.Equal(t, []string{"please remember my flight is on tuesday"}, deps.items.texts())
}

func TestService_DisabledHooks(t *testing.T) {
	svc, deps := newTestService(t, func(c *config.Config) {
		c.Capture.Enabled = false
		c.Recall.Enabled = false
	})
	deps.items.items = []core.StoredItem{{ID: "x", Text: "earlier message", Tags: "user", SessionID: "s1"}}

	assert.Zero(t, svc.AfterTurn(context.Background(), core.TurnEvent{
		Success:  true,
		Messages: []core.RawMessage{textMsg("user", "please remember my flight is on tuesday")},
	}))
	assert.Empty(t, svc.BeforeTurn(context.Background(), core.BeforeTurnEvent{Prompt: "when is my flight", SessionKey: "s1"}))
	assert.Empty(t, deps.search.calls)
}

func TestService_BeforeTurnRecallsSession(t *testing.T) {
	svc, deps := newTestService(t, nil)
	deps.items.items = []core.StoredItem{{ID: "x", Text: "my flight is on tuesday", Tags: "user", SessionID: "s1"}}

	out := svc.BeforeTurn(context.Background(), core.BeforeTurnEvent{Prompt: "hi", SessionKey: "s1"})

	assert.Equal(t, "<short-term-memory>\n[role: user] my flight is on tuesday\n</short-term-memory>", out)
}

func TestService_HooksRecoverFromPanics(t *testing.T) {
	var buf bytes.Buffer
	ctx := logCtx(&buf)
	svc, deps := newTestService(t, nil)
	deps.items.insertFn = func(core.StoredItem) error { panic("boom") }
	deps.items.sessionFn = func(string) ([]core.StoredItem, error) { panic("boom") }

	assert.NotPanics(t, func() {
		assert.Zero(t, svc.AfterTurn(ctx, core.TurnEvent{
			Success:  true,
			Messages: []core.RawMessage{textMsg("user", "please remember my flight is on tuesday")},
		}))
		assert.Empty(t, svc.BeforeTurn(ctx, core.BeforeTurnEvent{Prompt: "when is my flight", SessionKey: "s1"}))
	})
	assert.Contains(t, buf.String(), "memory hook recovered")
}

func TestService_Remember(t *testing.T) {
	svc, deps := newTestService(t, nil)
	ctx := context.Background()

	item, dup, err := svc.Remember(ctx, RememberRequest{Text: "  The wifi password is on the fridge  ", Tag: "home", SessionID: "s9"})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, "The wifi password is on the fridge", item.Text)
	assert.Equal(t, "home", item.Tags)
	assert.Equal(t, SourceManual, item.Source)
	assert.Equal(t, "user", item.EntityID)
	assert.Equal(t, "s9", item.SessionID)
	assert.Equal(t, ContentHash("The wifi password is on the fridge"), item.ContentHash)

	_, dup, err = svc.Remember(ctx, RememberRequest{Text: "the wifi password is on the FRIDGE"})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Len(t, deps.items.items, 1)

	var verr *core.ValidationError
	_, _, err = svc.Remember(ctx, RememberRequest{Text: "   "})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text", verr.Field)
}

func TestService_SearchValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cases := map[string]struct {
		req   SearchRequest
		field string
	}{
		"empty query":    {SearchRequest{Query: " "}, "query"},
		"unknown mode":   {SearchRequest{Query: "coffee", Mode: "vector"}, "mode"},
		"negative limit": {SearchRequest{Query: "coffee", Limit: -1}, "limit"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var verr *core.ValidationError
			_, err := svc.Search(ctx, tc.req)
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestService_SearchDefaultsLimit(t *testing.T) {
	svc, deps := newTestService(t, nil)
	for range 8 {
		deps.search.lexical = append(deps.search.lexical, result("coffee", ""))
	}

	got, err := svc.Search(context.Background(), SearchRequest{Query: "coffee", Mode: config.SearchModeLexical})

	require.NoError(t, err)
	assert.Len(t, got, defaultSearchLimit)
	assert.Equal(t, []string{"lexical"}, deps.search.calls)
}

func TestService_ForgetAndStats(t *testing.T) {
	svc, deps := newTestService(t, nil)
	ctx := context.Background()
	deps.items.items = []core.StoredItem{{ID: "a"}, {ID: "b"}}

	var verr *core.ValidationError
	_, err := svc.Forget(ctx, "")
	require.ErrorAs(t, err, &verr)

	ok, err := svc.Forget(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Forget(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Items)
}
