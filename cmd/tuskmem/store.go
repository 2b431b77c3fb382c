package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/spf13/cobra"
)

var (
	storeTag     string
	storeSession string
	storeEntity  string
)

var storeCmd = &cobra.Command{
	Use:   "store [text]",
	Short: "Store text in long-term memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			item, duplicate, err := a.memory.Remember(ctx, memory.RememberRequest{
				Text:      strings.Join(args, " "),
				Tag:       storeTag,
				SessionID: storeSession,
				EntityID:  storeEntity,
			})
			if err != nil {
				return err
			}
			if duplicate {
				fmt.Fprintln(cmd.OutOrStdout(), "already remembered")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), item.ID)
			return nil
		})
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget [id]",
	Short: "Delete one memory item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			ok, err := a.memory.Forget(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no item with id %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "forgotten")
			return nil
		})
	},
}

func init() {
	storeCmd.Flags().StringVarP(&storeTag, "tag", "t", "", "category tag, e.g. personal")
	storeCmd.Flags().StringVar(&storeSession, "session", "", "session to attribute the item to")
	storeCmd.Flags().StringVar(&storeEntity, "entity", "", "entity to attribute the item to")
	rootCmd.AddCommand(storeCmd, forgetCmd)
}
