package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/spf13/cobra"
)

var captureFile string

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a completed turn read as JSON",
	Long: `Reads a turn event from stdin or --file and runs the post-turn hook.
A missing "success" field counts as a successful turn.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		event, err := readTurnEvent(cmd.InOrStdin(), captureFile)
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			stored := a.memory.AfterTurn(ctx, event)
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d\n", stored)
			return nil
		})
	},
}

func readTurnEvent(stdin io.Reader, path string) (core.TurnEvent, error) {
	in := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return core.TurnEvent{}, fmt.Errorf("failed to open event file: %w", err)
		}
		defer f.Close()
		in = f
	}

	event := core.TurnEvent{Success: true}
	if err := json.NewDecoder(in).Decode(&event); err != nil {
		return core.TurnEvent{}, fmt.Errorf("failed to decode turn event: %w", err)
	}
	return event, nil
}

func init() {
	captureCmd.Flags().StringVarP(&captureFile, "file", "f", "", "read the event from a file instead of stdin")
	rootCmd.AddCommand(captureCmd)
}
