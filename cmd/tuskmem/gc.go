package main

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/spf13/cobra"
)

var (
	gcDays    int
	gcProtect []string
	gcLimit   int
	gcDryRun  bool
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete memories past the retention horizon",
	Long:  `Deletes items older than the retention horizon, oldest first. Items carrying a protected tag are kept.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			res, err := a.memory.GC(ctx, core.GCRequest{
				RetentionDays: gcDays,
				ProtectedTags: gcProtect,
				ScanLimit:     gcLimit,
				DryRun:        gcDryRun,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.Skipped:
				fmt.Fprintln(out, "gc skipped: no retention horizon configured")
				return nil
			case res.DryRun:
				fmt.Fprintf(out, "%d items created before %s would be deleted\n", res.Candidates, res.Cutoff.Format("2006-01-02"))
			default:
				fmt.Fprintf(out, "deleted %d items created before %s\n", res.Deleted, res.Cutoff.Format("2006-01-02"))
			}

			if len(res.Sample) > 0 {
				rows := make([][]string, 0, len(res.Sample))
				for _, it := range res.Sample {
					rows = append(rows, []string{it.ID, it.Tags, it.CreatedAt.Format("2006-01-02"), ui.Truncate(it.Text, 60)})
				}
				fmt.Fprintln(out, ui.Table([]string{"ID", "TAG", "DATE", "TEXT"}, rows))
			}
			return nil
		})
	},
}

func init() {
	f := gcCmd.Flags()
	f.IntVar(&gcDays, "days", 0, "retention horizon in days (default from configuration)")
	f.StringSliceVar(&gcProtect, "protect", nil, "additional tags to keep, repeatable")
	f.IntVar(&gcLimit, "limit", 0, "maximum items examined (default from configuration)")
	f.BoolVar(&gcDryRun, "dry-run", false, "report what would be deleted")
	rootCmd.AddCommand(gcCmd)
}
