package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/sandevgo/tuskmem/internal/storage/sqlite"
	"github.com/sandevgo/tuskmem/pkg/env"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			stats, err := a.memory.Stats(ctx)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"database", a.cfg.App.GetDatabasePath()},
				{"items", strconv.Itoa(stats.Items)},
				{"embeddings", strconv.Itoa(stats.Embeddings)},
				{"model", a.embedder.Model()},
			}
			if !stats.Oldest.IsZero() {
				rows = append(rows,
					[]string{"oldest", stats.Oldest.Format("2006-01-02 15:04")},
					[]string{"newest", stats.Newest.Format("2006-01-02 15:04")},
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.KeyValue(rows))
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the memory store schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			version, err := sqlite.SchemaVersion(ctx, a.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (%s)\n", version, a.cfg.App.GetDatabasePath())
			return nil
		})
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the effective configuration as environment variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		out, err := env.MarshalEnv(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, migrateCmd, envCmd)
}
