package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/pkg/log"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(mcpproto.NewTool("memory_before_turn",
		mcpproto.WithDescription("Returns remembered context to prepend to the agent input for a prompt. Empty when nothing is relevant."),
		mcpproto.WithString("prompt", mcpproto.Required(), mcpproto.Description("The user's prompt for the upcoming turn")),
		mcpproto.WithString("session_key", mcpproto.Description("Conversation session used for short-term recall")),
	), s.handleBeforeTurn)

	s.mcp.AddTool(mcpproto.NewTool("memory_after_turn",
		mcpproto.WithDescription("Captures the messages of a completed turn into long-term memory."),
		mcpproto.WithString("messages", mcpproto.Required(),
			mcpproto.Description(`JSON array of {"role": "...", "content": "..." | [{"type": "text", "text": "..."}]}`)),
		mcpproto.WithBoolean("success", mcpproto.Description("Whether the turn completed successfully (default true)")),
		mcpproto.WithString("session_key", mcpproto.Description("Conversation session the turn belongs to")),
		mcpproto.WithString("channel", mcpproto.Description("Channel the turn arrived on")),
		mcpproto.WithString("agent_id", mcpproto.Description("Agent that handled the turn")),
	), s.handleAfterTurn)

	s.mcp.AddTool(mcpproto.NewTool("memory_search",
		mcpproto.WithDescription("Searches long-term memory by keywords, optionally re-ranked by semantic similarity."),
		mcpproto.WithString("query", mcpproto.Required(), mcpproto.Description("Free text query")),
		mcpproto.WithNumber("limit", mcpproto.Description("Maximum results (default 5)")),
		mcpproto.WithString("mode", mcpproto.Enum("hybrid", "lexical"), mcpproto.Description("Search mode (default from configuration)")),
		mcpproto.WithString("entity_id", mcpproto.Description("Only items attributed to this entity")),
		mcpproto.WithString("process_id", mcpproto.Description("Only items written by this process")),
		mcpproto.WithString("session_id", mcpproto.Description("Only items from this session")),
	), s.handleSearch)

	s.mcp.AddTool(mcpproto.NewTool("memory_store",
		mcpproto.WithDescription("Stores a piece of text in long-term memory unless it was stored recently."),
		mcpproto.WithString("text", mcpproto.Required(), mcpproto.Description("Text to remember")),
		mcpproto.WithString("tag", mcpproto.Description("Category tag, e.g. personal or work")),
		mcpproto.WithString("session_id", mcpproto.Description("Session to attribute the item to")),
		mcpproto.WithString("entity_id", mcpproto.Description("Entity to attribute the item to (default user)")),
	), s.handleStore)

	s.mcp.AddTool(mcpproto.NewTool("memory_forget",
		mcpproto.WithDescription("Deletes one memory item by id."),
		mcpproto.WithString("id", mcpproto.Required(), mcpproto.Description("Item id as returned by memory_search or memory_store")),
		mcpproto.WithDestructiveHintAnnotation(true),
	), s.handleForget)

	s.mcp.AddTool(mcpproto.NewTool("memory_gc",
		mcpproto.WithDescription("Deletes items older than the retention horizon, except protected tags."),
		mcpproto.WithNumber("retention_days", mcpproto.Description("Horizon in days (default from configuration, 0 skips)")),
		mcpproto.WithArray("protected_tags", mcpproto.Items(map[string]any{"type": "string"}), mcpproto.Description("Tags to keep in addition to the configured ones")),
		mcpproto.WithNumber("scan_limit", mcpproto.Description("Maximum items examined")),
		mcpproto.WithBoolean("dry_run", mcpproto.Description("Report candidates without deleting")),
		mcpproto.WithDestructiveHintAnnotation(true),
	), s.handleGC)

	s.mcp.AddTool(mcpproto.NewTool("memory_stats",
		mcpproto.WithDescription("Reports item and embedding counts."),
		mcpproto.WithReadOnlyHintAnnotation(true),
	), s.handleStats)
}

func (s *Server) handleBeforeTurn(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	out := s.mem.BeforeTurn(ctx, core.BeforeTurnEvent{
		Prompt:     prompt,
		SessionKey: req.GetString("session_key", ""),
	})
	return mcpproto.NewToolResultText(out), nil
}

func (s *Server) handleAfterTurn(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	raw, err := req.RequireString("messages")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	var messages []core.RawMessage
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return toolError(ctx, core.NewValidationError("messages", "must be a JSON array of messages")), nil
	}

	stored := s.mem.AfterTurn(ctx, core.TurnEvent{
		Messages:   messages,
		Success:    req.GetBool("success", true),
		SessionKey: req.GetString("session_key", ""),
		Channel:    req.GetString("channel", ""),
		AgentID:    req.GetString("agent_id", ""),
	})
	return jsonResult(map[string]int{"stored": stored})
}

func (s *Server) handleSearch(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcpproto.NewToolResultError(err.Error()), nil
	}

	results, err := s.mem.Search(ctx, memory.SearchRequest{
		Query: query,
		Limit: req.GetInt("limit", 0),
		Mode:  req.GetString("mode", ""),
		Filter: core.Filter{
			EntityID:  req.GetString("entity_id", ""),
			ProcessID: req.GetString("process_id", ""),
			SessionID: req.GetString("session_id", ""),
		},
	})
	if err != nil {
		return toolError(ctx, err), nil
	}
	if results == nil {
		results = []core.SearchResult{}
	}
	return jsonResult(results)
}

func (s *Server) handleStore(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	item, duplicate, err := s.mem.Remember(ctx, memory.RememberRequest{
		Text:      req.GetString("text", ""),
		Tag:       strings.TrimSpace(req.GetString("tag", "")),
		SessionID: req.GetString("session_id", ""),
		EntityID:  req.GetString("entity_id", ""),
	})
	if err != nil {
		return toolError(ctx, err), nil
	}
	if duplicate {
		return jsonResult(map[string]any{"duplicate": true})
	}
	return jsonResult(map[string]any{"duplicate": false, "id": item.ID})
}

func (s *Server) handleForget(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	forgotten, err := s.mem.Forget(ctx, req.GetString("id", ""))
	if err != nil {
		return toolError(ctx, err), nil
	}
	return jsonResult(map[string]bool{"forgotten": forgotten})
}

func (s *Server) handleGC(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	res, err := s.mem.GC(ctx, core.GCRequest{
		RetentionDays: req.GetInt("retention_days", 0),
		ProtectedTags: req.GetStringSlice("protected_tags", nil),
		ScanLimit:     req.GetInt("scan_limit", 0),
		DryRun:        req.GetBool("dry_run", false),
	})
	if err != nil {
		return toolError(ctx, err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleStats(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	stats, err := s.mem.Stats(ctx)
	if err != nil {
		return toolError(ctx, err), nil
	}
	return jsonResult(stats)
}

// toolError reports a failure to the caller without stopping the server.
func toolError(ctx context.Context, err error) *mcpproto.CallToolResult {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return mcpproto.NewToolResultError(verr.Error())
	}
	log.FromCtx(ctx).Error().Err(err).Msg("memory tool failed")
	return mcpproto.NewToolResultErrorFromErr("memory operation failed", err)
}

func jsonResult(v any) (*mcpproto.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcpproto.NewToolResultText(string(data)), nil
}
