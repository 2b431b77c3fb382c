package mcp

import (
	"context"
	"errors"
	"io"
	stdlog "log"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/pkg/log"
)

// MemoryService is the part of memory.Service exposed as tools.
type MemoryService interface {
	core.Memory
	Remember(ctx context.Context, req memory.RememberRequest) (core.StoredItem, bool, error)
	Search(ctx context.Context, req memory.SearchRequest) ([]core.SearchResult, error)
	Forget(ctx context.Context, id string) (bool, error)
	GC(ctx context.Context, req core.GCRequest) (core.GCResult, error)
	Stats(ctx context.Context) (core.StoreStats, error)
}

// Server serves the memory tools over MCP stdio.
type Server struct {
	mem MemoryService
	mcp *mcpserver.MCPServer
	in  io.Reader
	out io.Writer
}

func NewServer(mem MemoryService) *Server {
	s := &Server{
		mem: mem,
		in:  os.Stdin,
		out: os.Stdout,
	}

	s.mcp = mcpserver.NewMCPServer(
		core.AppName,
		core.AppVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions(instructions),
	)
	s.registerTools()

	return s
}

// MCP returns the underlying server, e.g. for an in-process client.
func (s *Server) MCP() *mcpserver.MCPServer {
	return s.mcp
}

func (s *Server) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("version", core.AppVersion).Msg("mcp stdio server started")

	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(stdlog.New(logger, "", 0))

	err := stdio.Listen(ctx, s.in, s.out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("mcp stdio server stopped")
	return nil
}

const instructions = `tuskmem keeps a long-term memory of conversations.
Call memory_before_turn with the user's prompt before answering and prepend the returned context.
Call memory_after_turn with the finished turn's messages so they can be recalled later.
Use memory_search, memory_store and memory_forget to inspect or curate what is remembered.`
