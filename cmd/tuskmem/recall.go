package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/spf13/cobra"
)

var recallSession string

var recallCmd = &cobra.Command{
	Use:   "recall [prompt]",
	Short: "Print the context recalled for a prompt",
	Long:  `Runs the pre-turn hook: recent messages of the session plus memories relevant to the prompt.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			out := a.memory.BeforeTurn(ctx, core.BeforeTurnEvent{
				Prompt:     strings.Join(args, " "),
				SessionKey: recallSession,
			})
			if out != "" {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return nil
		})
	},
}

func init() {
	recallCmd.Flags().StringVarP(&recallSession, "session", "s", "", "session key for short-term recall")
	rootCmd.AddCommand(recallCmd)
}
