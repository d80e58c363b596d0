package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/archive"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show score history across scans",
	Long: `Show recent scans with their scores. Reads the SQLite archive when it is
enabled, otherwise the history kept in the state file.`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := context.Background()

		entries, trend := historyFromArchive(ctx, limit)
		if entries == nil {
			s := loadState()
			entries = s.ScanHistory
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
		}
		if len(entries) == 0 {
			fmt.Println("No scans recorded yet")
			return
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%-17s %-8s %8s %8s %6s %5s %5s\n", "When", "Lang", "Health", "Strict", "Open", "+New", "-Res")
		for _, e := range entries {
			fmt.Printf("%-17s %-8s %8.1f %8.1f %6d %5d %5d\n",
				e.Timestamp.Local().Format("2006-01-02 15:04"), e.Lang,
				e.OverallScore, e.StrictScore, e.Open, e.DiffNew, e.DiffResolved)
		}
		if trend != nil {
			fmt.Printf("\n%s\n", gray(fmt.Sprintf(
				"Over %d scans since %s: health %+.1f, strict %+.1f, open %+d (best %.1f, worst %.1f)",
				trend.Scans, trend.Since.Format("2006-01-02"), trend.OverallDelta, trend.StrictDelta,
				trend.OpenDelta, trend.BestOverall, trend.WorstOverall)))
		}
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of scans to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

// historyFromArchive returns nil entries when the archive is disabled or
// unavailable.
func historyFromArchive(ctx context.Context, limit int) ([]types.ScanHistoryEntry, *archive.Trend) {
	if !project.Archive.Enabled {
		return nil, nil
	}
	a, err := archive.Open(archivePath())
	if err != nil {
		slog.Warn("scan archive unavailable", "error", err)
		return nil, nil
	}
	defer a.Close()

	entries, err := a.Recent(ctx, limit)
	if err != nil || len(entries) == 0 {
		if err != nil {
			slog.Warn("reading scan archive", "error", err)
		}
		return nil, nil
	}
	t, ok, err := a.Trend(ctx, limit)
	if err != nil || !ok {
		return entries, nil
	}
	return entries, &t
}
