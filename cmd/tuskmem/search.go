package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/internal/service/memory"
	"github.com/sandevgo/tuskmem/internal/service/ui"
	"github.com/spf13/cobra"
)

var (
	searchMode    string
	searchLimit   int
	searchEntity  string
	searchProcess string
	searchSession string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search long-term memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			results, err := a.memory.Search(ctx, memory.SearchRequest{
				Query: strings.Join(args, " "),
				Limit: searchLimit,
				Mode:  searchMode,
				Filter: core.Filter{
					EntityID:  searchEntity,
					ProcessID: searchProcess,
					SessionID: searchSession,
				},
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if searchJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "no memories found")
				return nil
			}
			fmt.Fprintln(out, ui.Table([]string{"ID", "SCORE", "TAG", "DATE", "TEXT"}, resultRows(results)))
			return nil
		})
	},
}

func resultRows(results []core.SearchResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Item.ID,
			fmt.Sprintf("%.3f", r.Score),
			r.Item.Tags,
			r.Item.CreatedAt.Format("2006-01-02"),
			ui.Truncate(r.Item.Text, 60),
		})
	}
	return rows
}

func init() {
	f := searchCmd.Flags()
	f.StringVarP(&searchMode, "mode", "m", "", "hybrid or lexical (default from configuration)")
	f.IntVarP(&searchLimit, "limit", "n", 5, "maximum results")
	f.StringVar(&searchEntity, "entity", "", "only items of this entity")
	f.StringVar(&searchProcess, "process", "", "only items written by this process")
	f.StringVar(&searchSession, "session", "", "only items of this session")
	f.BoolVar(&searchJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}
