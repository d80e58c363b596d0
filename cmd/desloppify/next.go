package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/state"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next findings to work on",
	Long: `Show the highest-priority open findings.

The queue is capped per detector and globally so one noisy detector cannot
crowd out everything else. Hidden counts are reported.

Examples:
  desloppify next
  desloppify next --count 10 --path src/api
  desloppify next --chronic`,
	Run: func(cmd *cobra.Command, args []string) {
		count, _ := cmd.Flags().GetInt("count")
		chronic, _ := cmd.Flags().GetBool("chronic")
		path, _ := cmd.Flags().GetString("path")

		s := loadState()
		perDetector, global, warning := state.ResolveNoiseSettings(s.Config)
		if warning != "" {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %s\n", yellow("⚠"), warning)
		}

		q := state.BuildQueue(s, state.QueueOptions{
			ScanPath:    path,
			Chronic:     chronic,
			Count:       count,
			PerDetector: perDetector,
			Global:      global,
		})
		if len(q.Items) == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s Nothing to do\n", green("✓"))
			return
		}
		for _, f := range q.Items {
			printFinding(f)
		}
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("Showing %d of %d open finding(s)\n", len(q.Items), q.Total)
		for _, h := range q.Hidden {
			fmt.Printf("  %s\n", gray(fmt.Sprintf("%d more from %s hidden by the noise budget", h.Count, h.Detector)))
		}
	},
}

func init() {
	nextCmd.Flags().IntP("count", "n", 5, "Number of findings to show")
	nextCmd.Flags().Bool("chronic", false, "Only findings reopened at least twice")
	nextCmd.Flags().String("path", "", "Restrict to this path")
	rootCmd.AddCommand(nextCmd)
}
