package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xyleth/desloppify-sub004/internal/state"
	"github.com/xyleth/desloppify-sub004/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show <pattern>",
	Short: "Show findings matching a pattern",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		s := loadState()

		matches := state.MatchFindings(s, args[0], status)
		if len(matches) == 0 {
			fmt.Printf("No %s findings match %q\n", status, args[0])
			return
		}
		for _, f := range matches {
			printFinding(f)
		}
		fmt.Printf("%d finding(s)\n", len(matches))
	},
}

func init() {
	showCmd.Flags().String("status", string(types.StatusOpen), "Status filter (open, fixed, wontfix, false_positive, auto_resolved, all)")
	rootCmd.AddCommand(showCmd)
}

func printFinding(f *types.Finding) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("%s  [T%d %s] %s\n", cyan(f.ID), f.Tier, f.Confidence, f.Summary)
	fmt.Printf("  %s\n", gray(fmt.Sprintf("%s · first seen %s · last seen %s",
		f.Status, f.FirstSeen.Format("2006-01-02"), f.LastSeen.Format("2006-01-02"))))
	if f.ReopenCount > 0 {
		fmt.Printf("  %s\n", yellow(fmt.Sprintf("reopened %d×", f.ReopenCount)))
	}
	if f.Note != "" {
		fmt.Printf("  note: %s\n", f.Note)
	}
	if len(f.Detail) > 0 {
		keys := f.Detail.Keys()
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, f.Detail[k]))
		}
		fmt.Printf("  %s\n", gray(strings.Join(parts, " ")))
	}
	fmt.Println()
}
