package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemory struct {
	before    core.BeforeTurnEvent
	after     core.TurnEvent
	search    memory.SearchRequest
	remember  memory.RememberRequest
	gc        core.GCRequest
	searchErr error
	duplicate bool
}

func (f *fakeMemory) BeforeTurn(ctx context.Context, ev core.BeforeTurnEvent) string {
	f.before = ev
	return "<relevant-memories>\n- likes tea\n</relevant-memories>"
}

func (f *fakeMemory) AfterTurn(ctx context.Context, ev core.TurnEvent) int {
	f.after = ev
	return len(ev.Messages)
}

func (f *fakeMemory) Remember(ctx context.Context, req memory.RememberRequest) (core.StoredItem, bool, error) {
	f.remember = req
	if req.Text == "" {
		return core.StoredItem{}, false, core.NewValidationError("text", "must not be empty")
	}
	if f.duplicate {
		return core.StoredItem{}, true, nil
	}
	return core.StoredItem{ID: "item-1", Text: req.Text}, false, nil
}

func (f *fakeMemory) Search(ctx context.Context, req memory.SearchRequest) ([]core.SearchResult, error) {
	f.search = req
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return []core.SearchResult{{Item: core.StoredItem{ID: "a", Text: "likes tea"}, Score: 0.9}}, nil
}

func (f *fakeMemory) Forget(ctx context.Context, id string) (bool, error) {
	return id == "a", nil
}

func (f *fakeMemory) GC(ctx context.Context, req core.GCRequest) (core.GCResult, error) {
	f.gc = req
	return core.GCResult{DryRun: req.DryRun, Candidates: 2}, nil
}

func (f *fakeMemory) Stats(ctx context.Context) (core.StoreStats, error) {
	return core.StoreStats{Items: 3, Embeddings: 1}, nil
}

func call(args map[string]any) mcpproto.CallToolRequest {
	req := mcpproto.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcpproto.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcpproto.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServer_BeforeTurn(t *testing.T) {
	mem := &fakeMemory{}
	s := NewServer(mem)

	res, err := s.handleBeforeTurn(context.Background(), call(map[string]any{"prompt": "what do I drink", "session_key": "s1"}))

	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "likes tea")
	assert.Equal(t, core.BeforeTurnEvent{Prompt: "what do I drink", SessionKey: "s1"}, mem.before)

	res, err = s.handleBeforeTurn(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_AfterTurn(t *testing.T) {
	mem := &fakeMemory{}
	s := NewServer(mem)

	res, err := s.handleAfterTurn(context.Background(), call(map[string]any{
		"messages":    `[{"role":"user","content":"I like tea"},{"role":"assistant","content":[{"type":"text","text":"Noted"}]}]`,
		"session_key": "s1",
		"agent_id":    "main",
	}))

	require.NoError(t, err)
	assert.JSONEq(t, `{"stored":2}`, text(t, res))
	assert.True(t, mem.after.Success)
	assert.Equal(t, "main", mem.after.AgentID)
	assert.Equal(t, "Noted", mem.after.Messages[1].Content.PlainText())

	res, err = s.handleAfterTurn(context.Background(), call(map[string]any{"messages": `{"role":"user"}`}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid messages")
}

func TestServer_AfterTurnHonoursFailure(t *testing.T) {
	mem := &fakeMemory{}
	s := NewServer(mem)

	_, err := s.handleAfterTurn(context.Background(), call(map[string]any{"messages": `[]`, "success": false}))

	require.NoError(t, err)
	assert.False(t, mem.after.Success)
}

func TestServer_Search(t *testing.T) {
	mem := &fakeMemory{}
	s := NewServer(mem)

	res, err := s.handleSearch(context.Background(), call(map[string]any{
		"query":     "tea",
		"limit":     float64(2),
		"mode":      "lexical",
		"entity_id": "user",
	}))

	require.NoError(t, err)
	var got []core.SearchResult
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Item.ID)
	assert.Equal(t, memory.SearchRequest{Query: "tea", Limit: 2, Mode: "lexical", Filter: core.Filter{EntityID: "user"}}, mem.search)
}

func TestServer_SearchErrors(t *testing.T) {
	mem := &fakeMemory{searchErr: core.NewValidationError("mode", "must be hybrid or lexical")}
	s := NewServer(mem)

	res, err := s.handleSearch(context.Background(), call(map[string]any{"query": "tea", "mode": "vector"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "invalid mode: must be hybrid or lexical", text(t, res))

	mem.searchErr = core.NewStoreError("lexical search", errors.New("database is locked"))
	res, err = s.handleSearch(context.Background(), call(map[string]any{"query": "tea"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "database is locked")
}

func TestServer_Store(t *testing.T) {
	mem := &fakeMemory{}
	s := NewServer(mem)

	res, err := s.handleStore(context.Background(), call(map[string]any{"text": "wifi password is on the fridge", "tag": " home "}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"duplicate":false,"id":"item-1"}`, text(t, res))
	assert.Equal(t, "home", mem.remember.Tag)

	mem.duplicate = true
	res, err = s.handleStore(context.Background(), call(map[string]any{"text": "wifi password is on the fridge"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"duplicate":true}`, text(t, res))

	res, err = s.handleStore(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_ForgetGCStats(t *testing.T) {
	mem := &fakeMemory{}
	s := NewServer(mem)
	ctx := context.Background()

	res, err := s.handleForget(ctx, call(map[string]any{"id": "a"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"forgotten":true}`, text(t, res))

	res, err = s.handleGC(ctx, call(map[string]any{
		"retention_days": float64(30),
		"protected_tags": []any{"personal", "work"},
		"dry_run":        true,
	}))
	require.NoError(t, err)
	assert.Equal(t, core.GCRequest{RetentionDays: 30, ProtectedTags: []string{"personal", "work"}, DryRun: true}, mem.gc)
	assert.Contains(t, text(t, res), `"candidates":2`)

	res, err = s.handleStats(ctx, call(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":3,"embeddings":1}`, text(t, res))
}
