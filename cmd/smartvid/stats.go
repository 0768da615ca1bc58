package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/smartvid/smartvid/internal/repository"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the admin dashboard figures",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(ctx.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			qctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			a, err := repository.NewAdminRepo(db).Analytics(qctx, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(a)
			}
			_, err = fmt.Fprintln(out, renderStats(a))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

// renderStats lays the analytics out as a two-column table.
func renderStats(a repository.Analytics) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{"Metric", "Value"})
	for _, row := range statsRows(a) {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func statsRows(a repository.Analytics) [][2]string {
	n := func(v int64) string { return strconv.FormatInt(v, 10) }
	rows := [][2]string{
		{"Users", n(a.TotalUsers)},
		{"New users (30d)", n(a.NewUsers30d)},
		{"Videos", n(a.TotalVideos)},
		{"Videos (30d)", n(a.Videos30d)},
	}
	for _, k := range sortedKeys(a.VideosByStatus) {
		rows = append(rows, [2]string{"Videos " + k, n(a.VideosByStatus[k])})
	}
	for _, k := range sortedKeys(a.ActiveSubscriptions) {
		rows = append(rows, [2]string{"Active " + k + " subscriptions", n(a.ActiveSubscriptions[k])})
	}
	rows = append(rows,
		[2]string{"Renders (24h)", n(a.Renders24h)},
		[2]string{"Failed renders (24h)", n(a.RendersFailed24h)},
		[2]string{"Avg render time", (time.Duration(a.AvgRenderMs) * time.Millisecond).String()},
	)
	return rows
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
