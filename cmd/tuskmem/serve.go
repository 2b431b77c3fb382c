package main

import (
	"github.com/sandevgo/tuskmem/internal/transport/mcp"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/sandevgo/tuskmem/pkg/srv"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the memory tools over MCP stdio",
	Long:  `Runs an MCP server on stdin/stdout until the client disconnects or the process is interrupted. Logs go to stderr.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		logger := log.FromCtx(ctx)

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		err = srv.Run(ctx,
			srv.NewCleanup(a.Close),
			mcp.NewServer(a.memory),
		)
		logger.Info().Msg("tuskmem has been shut down gracefully")
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
